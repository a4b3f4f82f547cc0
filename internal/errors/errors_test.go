// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "malformed packet")
	if err.Error() != "malformed packet" {
		t.Errorf("expected 'malformed packet', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to decode datagram")
	if wrapped.Error() != "failed to decode datagram: malformed packet" {
		t.Errorf("expected 'failed to decode datagram: malformed packet', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindProtocol, "unexpected negotiate reply")
	if GetKind(err) != KindProtocol {
		t.Errorf("expected KindProtocol, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindTimeout, "probe deadline")
	if GetKind(wrapped) != KindTimeout {
		t.Errorf("expected KindTimeout, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindInternal, "anything") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, KindInternal, "anything %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:     "unknown",
		KindInternal:    "internal",
		KindValidation:  "validation",
		KindProtocol:    "protocol",
		KindUnavailable: "unavailable",
		KindTimeout:     "timeout",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
