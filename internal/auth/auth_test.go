package auth

import (
	"errors"
	"testing"

	"github.com/exbotanical/seance/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name   string
		secret string
		token  string
		allow  bool
	}{
		{name: "exact match", secret: "open-sesame", token: "open-sesame", allow: true},
		{name: "near miss", secret: "open-sesame", token: "open-sesam"},
		{name: "trailing space", secret: "open-sesame", token: "open-sesame "},
		{name: "blank token", secret: "open-sesame", token: ""},
		{name: "blank secret rejects blank token", secret: "", token: ""},
		{name: "blank secret rejects any token", secret: "", token: "anything"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := StaticToken{Token: tc.secret}.Validate(tc.token)
			if tc.allow && err != nil {
				t.Fatalf("want accept, got %v", err)
			}
			if !tc.allow && !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("want ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)

	var seen []string
	admitShort := FuncValidator(func(token string) error {
		seen = append(seen, token)
		if len(token) > 8 {
			return ErrUnauthorized
		}
		return nil
	})

	if err := admitShort.Validate("brief"); err != nil {
		t.Fatalf("short token rejected: %v", err)
	}
	if err := admitShort.Validate("interminable"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("long token admitted, err=%v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("validator ran %d times, want 2", len(seen))
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "plain bearer", header: "Bearer s3cret", want: "s3cret", ok: true},
		{name: "case-insensitive scheme", header: "bearer s3cret", want: "s3cret", ok: true},
		{name: "padded header", header: "  Bearer   s3cret  ", want: "s3cret", ok: true},
		{name: "empty header", header: "", ok: false},
		{name: "missing credential", header: "Bearer", ok: false},
		{name: "wrong scheme", header: "Basic s3cret", ok: false},
		{name: "trailing garbage", header: "Bearer one two", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BearerToken(tc.header)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("expected token %q, got %q", tc.want, got)
			}
		})
	}
}
