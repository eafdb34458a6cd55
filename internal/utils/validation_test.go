package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ValidatePhoneNumber(t *testing.T) {
	testCases := []struct {
		phoneNumber string
		wantErr     error
	}{
		{"", ErrEmptyPhoneNumber},
		{"notvalidphone", ErrInvalidE164PhoneNumber},
		{"14155555555", ErrInvalidE164PhoneNumber},
		{"+1 415 555 5555", ErrInvalidE164PhoneNumber},
		{"+05555555555", ErrInvalidE164PhoneNumber},
		{"+15555555555", ErrInvalidE164PhoneNumber},
		{"+380445555555", nil},
		{"+14155555555", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.phoneNumber, func(t *testing.T) {
			assert.Equal(t, tc.wantErr, ValidatePhoneNumber(tc.phoneNumber))
		})
	}
}

func Test_ValidateEmail(t *testing.T) {
	assert.Equal(t, ErrEmptyEmail, ValidateEmail(""))
	assert.EqualError(t, ValidateEmail("principal"), `the provided email "principal" is not valid`)
	assert.NoError(t, ValidateEmail("principal@greenwood.edu"))
}

func Test_ValidateDNS(t *testing.T) {
	assert.NoError(t, ValidateDNS("greenwood-high"))
	assert.NoError(t, ValidateDNS("greenwood.schoolhub.app"))
	assert.EqualError(t, ValidateDNS("green wood"), `"green wood" is not a valid DNS name`)
}

func Test_ValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://greenwood.edu/about"))
	assert.Error(t, ValidateURL("greenwood.edu"))
	assert.Error(t, ValidateURL("ftp://greenwood.edu"))
}

func Test_ValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("2026-09-01"))
	assert.EqualError(t, ValidateDate("01/09/2026"), `"01/09/2026" is not a date in the YYYY-MM-DD format`)
}
