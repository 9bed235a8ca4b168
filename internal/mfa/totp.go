// Package mfa implements TOTP enrollment and verification, one-time backup
// codes and the login challenge that sits between password and second factor.
package mfa

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters. Skew allows two 30 s steps either side of the server clock.
const (
	totpPeriod = 30
	totpSkew   = 2
	qrSize     = 200
)

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// newKey creates a random base32 secret and its otpauth:// provisioning URI.
func newKey(issuer, account string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return key, nil
}

// validTOTP reports whether code is valid for secret at t. Malformed codes
// are simply invalid.
func validTOTP(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), validateOpts())
	return err == nil && ok
}

// qrDataURL renders the key's provisioning URI as a PNG data URL.
func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
