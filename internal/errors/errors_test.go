package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCreation(t *testing.T) {
	err := E(Op("ena.fetch"), KindNetwork, "request failed")

	assert.Equal(t, Op("ena.fetch"), err.Op)
	assert.Equal(t, KindNetwork, err.Kind)
	assert.Equal(t, "request failed", err.Msg)
}

func TestErrorWithWrappedError(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := E(Op("geo.lookup"), KindNetwork, underlying, "sample lookup failed")

	assert.Same(t, underlying, err.Err)
	assert.Equal(t, "geo.lookup: sample lookup failed: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, underlying))
}

func TestErrorStringFormats(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{"op only", &Error{Op: "test"}, "test: "},
		{"msg only", &Error{Msg: "failed"}, "failed"},
		{"err only", &Error{Err: fmt.Errorf("root")}, "root"},
		{"op and msg", &Error{Op: "test", Msg: "failed"}, "test: failed"},
		{"all fields", &Error{Op: "test", Msg: "failed", Err: fmt.Errorf("root")}, "test: failed: root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindParse, "parse"},
		{KindNotFound, "not_found"},
		{KindNetwork, "network"},
		{KindDecode, "decode"},
		{KindIO, "io"},
		{KindConfig, "config"},
		{KindDatabase, "database"},
		{KindValidation, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("test", nil))

	wrapped := Wrap("db.query", fmt.Errorf("test error"))
	require.NotNil(t, wrapped)

	var appErr *Error
	require.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, Op("db.query"), appErr.Op)
}

func TestWrapMsg(t *testing.T) {
	assert.Nil(t, WrapMsg("test", "msg", nil))

	wrapped := WrapMsg("db.query", "query failed", fmt.Errorf("test error"))
	require.NotNil(t, wrapped)
	assert.Contains(t, wrapped.Error(), "query failed")
}

func TestIsKind(t *testing.T) {
	err := E(KindDecode, "bad payload")
	assert.True(t, IsKind(err, KindDecode))
	assert.False(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(fmt.Errorf("standard error"), KindDecode))
}

func TestGetKindFollowsChain(t *testing.T) {
	inner := E(KindNetwork, "timeout")
	outer := Wrap("pipeline.process", inner)
	assert.Equal(t, KindNetwork, GetKind(outer))

	wrappedByFmt := fmt.Errorf("resolving: %w", outer)
	assert.Equal(t, KindNetwork, GetKind(wrappedByFmt))

	assert.Equal(t, KindUnknown, GetKind(fmt.Errorf("plain")))
	assert.Equal(t, KindUnknown, GetKind(nil))
}

func TestSkipCounter(t *testing.T) {
	sc := NewSkipCounter("parsing input")
	assert.Equal(t, 0, sc.Count)

	sc.Skip(fmt.Errorf("error 1"), "line 1")
	sc.Skip(fmt.Errorf("error 2"), "line 2")
	sc.Skip(fmt.Errorf("error 3"), "line 3")

	assert.Equal(t, 3, sc.Count)
	require.Error(t, sc.LastErr)
	assert.Equal(t, "error 3", sc.LastErr.Error())
	assert.Equal(t, "line 3", sc.LastDetail)

	sc.Report()
}

func TestRowScanner(t *testing.T) {
	rs := NewRowScanner("listing batches")
	rs.RecordScan()
	rs.RecordScan()
	rs.RecordScan()
	rs.RecordSkip(fmt.Errorf("scan error"), "row1")

	assert.Equal(t, 3, rs.ScannedCount())
	assert.Equal(t, 1, rs.SkippedCount())
	rs.Report()
}

func TestLoggingHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		LogAndContinue("test operation", fmt.Errorf("test error"))
		LogAndContinueWith("test operation", fmt.Errorf("test error"), "SRR000001")
		IgnoreError(nil, "nothing")
		IgnoreError(fmt.Errorf("test"), "closing body")
	})
}

func TestIsAndAsFollowWrappedSentinels(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	err := E(Op("op"), KindNetwork, fmt.Errorf("ctx: %w", sentinel))

	assert.True(t, Is(err, sentinel))

	var e *Error
	require.True(t, As(Wrap("outer", err), &e))
	assert.Equal(t, Op("outer"), e.Op)
}
