package bladevk

import (
	"fmt"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// ErrNotSupported matches every NotSupportedError under errors.Is.
var ErrNotSupported = errors.New("bladevk: not supported")

// ErrStaleHandle is the cause of the panic raised when a memory handle is
// used after it was freed.
var ErrStaleHandle = errors.New("bladevk: stale memory handle")

// NotSupportedError reports that the native API, an extension or a device
// capability required by the device layer is unavailable.
type NotSupportedError struct {
	Reason string
	Cause  error
}

func (e *NotSupportedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("not supported: %s: %v", e.Reason, e.Cause)
	}
	return "not supported: " + e.Reason
}

func (e *NotSupportedError) Unwrap() error { return e.Cause }

func (e *NotSupportedError) Is(target error) bool { return target == ErrNotSupported }

func notSupported(cause error, format string, args ...any) *NotSupportedError {
	return &NotSupportedError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// ResultError is a failed native call.
type ResultError = driver.ResultError

// NewError wraps a native result code together with the calling location.
// It returns nil on success.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	err := error(&ResultError{Op: "vulkan", Result: ret})
	if _, file, line, ok := runtime.Caller(1); ok {
		return errors.Wrapf(err, "at %s:%d", file, line)
	}
	return errors.WithStack(err)
}

// fatalf logs and panics. Native failures outside of bootstrap are not
// recoverable.
func fatalf(err error, format string, args ...any) {
	err = errors.WithStackDepth(errors.Wrapf(err, format, args...), 1)
	Logger().Error("fatal native failure", "err", err)
	panic(err)
}

// mustSucceed panics through fatalf when err is non-nil.
func mustSucceed(err error, op string) {
	if err != nil {
		fatalf(err, "%s", op)
	}
}

// checkErr turns a panic into an error. Deferred by entry points that must
// return errors instead of crashing.
func checkErr(err *error) {
	if v := recover(); v != nil {
		switch e := v.(type) {
		case error:
			*err = e
		default:
			*err = errors.Newf("%+v", v)
		}
	}
}
