package message

import (
	"context"
	"fmt"
	"strings"
)

type MessengerClient interface {
	SendMessage(ctx context.Context, message Message) error
	MessengerType() MessengerType
}

// credential is a named provider setting that must not be blank.
type credential struct {
	name  string
	value *string
}

// requireCredentials trims every credential in place and fails on the first blank one.
func requireCredentials(provider string, creds ...credential) error {
	for _, c := range creds {
		*c.value = strings.TrimSpace(*c.value)
		if *c.value == "" {
			return fmt.Errorf("%s %s is empty", provider, c.name)
		}
	}
	return nil
}
