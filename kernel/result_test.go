package kernel

import (
	"testing"
)

// fakeOp is a fallible operation used to exercise the result envelope.
func fakeOp(fail bool) Result[int] {
	if fail {
		return Err[int](NewError(CodeInternal, "fake failure"))
	}
	return Ok(42)
}

func TestResultTags(t *testing.T) {
	ok := fakeOp(false)
	if !ok.IsOk() || ok.IsErr() || ok.Tag() != TagOk {
		t.Fatal("Ok result carries wrong tag")
	}
	if v := ok.Unwrap(); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}

	fail := fakeOp(true)
	if !fail.IsErr() || fail.IsOk() || fail.Tag() != TagErr {
		t.Fatal("Err result carries wrong tag")
	}
	e := fail.UnwrapErr()
	if e.Code() != CodeInternal {
		t.Errorf("Expected CodeInternal, got %v", e.Code())
	}
	if e.Message() != "fake failure" {
		t.Errorf("Unexpected message %q", e.Message())
	}
	if err := e.Free(); err != nil {
		t.Errorf("Free failed: %v", err)
	}
}

func TestResultErrNeverExposesOkPayload(t *testing.T) {
	fail := fakeOp(true)

	// The checked accessor returns the zero value alongside the error.
	v, e := fail.Get()
	if e == nil {
		t.Fatal("Expected error payload")
	}
	if v != 0 {
		t.Errorf("Err result exposed non-zero Ok payload %d", v)
	}
	_ = e.Free()

	// The panicking accessor refuses outright.
	defer func() {
		if recover() == nil {
			t.Error("Unwrap of Err result should panic")
		}
	}()
	fail.Unwrap()
}

func TestResultOkNeverExposesErrPayload(t *testing.T) {
	ok := fakeOp(false)

	_, e := ok.Get()
	if e != nil {
		t.Errorf("Ok result exposed error payload %v", e)
	}

	defer func() {
		if recover() == nil {
			t.Error("UnwrapErr of Ok result should panic")
		}
	}()
	ok.UnwrapErr()
}

func TestErrorFreeExactlyOnce(t *testing.T) {
	e := NewError(CodeStorage, "disk on fire")
	if err := e.Free(); err != nil {
		t.Fatalf("First free failed: %v", err)
	}
	if err := e.Free(); err != ErrAlreadyReleased {
		t.Errorf("Second free: expected ErrAlreadyReleased, got %v", err)
	}
}

func TestErrorCodeStrings(t *testing.T) {
	codes := map[ErrorCode]string{
		CodeAllocation:        "allocation",
		CodeInvalidArgument:   "invalid argument",
		CodeStorage:           "storage",
		CodeSchemaMismatch:    "schema mismatch",
		CodeInvalidHandle:     "invalid handle",
		CodeMissingCommitInfo: "missing commit info",
		CodeInternal:          "internal",
	}
	for code, want := range codes {
		if code.String() != want {
			t.Errorf("Code %d: expected %q, got %q", code, want, code.String())
		}
	}
}
