package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/nyaruka/phonenumbers"
)

var (
	rxPhone = regexp.MustCompile(`^\+[1-9][0-9]{9,14}$`)

	ErrEmptyPhoneNumber       = errors.New("phone number cannot be empty")
	ErrInvalidE164PhoneNumber = errors.New("the provided phone number is not a valid E.164 number")
	ErrEmptyEmail             = errors.New("email cannot be empty")
)

const DateLayout = "2006-01-02"

// ValidatePhoneNumber accepts E.164 numbers that libphonenumber considers valid.
func ValidatePhoneNumber(phoneNumber string) error {
	if phoneNumber == "" {
		return ErrEmptyPhoneNumber
	}
	if !rxPhone.MatchString(phoneNumber) {
		return ErrInvalidE164PhoneNumber
	}
	parsed, err := phonenumbers.Parse(phoneNumber, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ErrInvalidE164PhoneNumber
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	if !govalidator.IsEmail(email) {
		return fmt.Errorf("the provided email %q is not valid", email)
	}
	return nil
}

func ValidateDNS(domain string) error {
	if !govalidator.IsDNSName(domain) {
		return fmt.Errorf("%q is not a valid DNS name", domain)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(rawURL string) error {
	if !govalidator.IsRequestURL(rawURL) || !(strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")) {
		return fmt.Errorf("%q is not a valid URL", rawURL)
	}
	return nil
}

func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%q is not a date in the YYYY-MM-DD format", date)
	}
	return nil
}
