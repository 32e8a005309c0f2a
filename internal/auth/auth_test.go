package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danmuck/edgetrack/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			log.Debug().Str("stored", tc.stored).Str("input", tc.input).Err(err).Msg("auth/static-token")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name   string
		header http.Header
		want   string
	}{
		{name: "bearer", header: http.Header{"Authorization": {"Bearer s3cret"}}, want: "s3cret"},
		{name: "bearer case insensitive", header: http.Header{"Authorization": {"bearer  s3cret "}}, want: "s3cret"},
		{name: "api key", header: http.Header{"X-Api-Key": {"k"}}, want: "k"},
		{name: "basic falls back to api key", header: http.Header{"Authorization": {"Basic abc"}, "X-Api-Key": {"k"}}, want: "k"},
		{name: "none", header: http.Header{}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TokenFromHeader(tc.header); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}

	v := StaticToken{Token: "s3cret"}
	if err := Check(v, http.Header{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized without token, got %v", err)
	}
	if err := Check(v, http.Header{"Authorization": {"Bearer s3cret"}}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
