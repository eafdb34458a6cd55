package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_AdminValidator_ValidateCreate(t *testing.T) {
	av := NewAdminValidator()
	req := &CreateAdminRequest{Name: " Jane Doe ", Email: " Jane@Greenwood.EDU ", Password: "correct horse battery", SchoolName: " Greenwood High "}
	av.ValidateCreate(req)
	assert.Empty(t, av.Errors)
	assert.Equal(t, &CreateAdminRequest{Name: "Jane Doe", Email: "jane@greenwood.edu", Password: "correct horse battery", SchoolName: "Greenwood High"}, req)

	av = NewAdminValidator()
	av.ValidateCreate(&CreateAdminRequest{Email: "jane", Password: "short"})
	assert.Equal(t, map[string]interface{}{
		"name":     "name is required",
		"email":    "email must be a valid email",
		"password": "password must have at least 12 characters",
	}, av.Errors)
}
