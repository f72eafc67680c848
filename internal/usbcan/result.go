package usbcan

// Status 操作结果状态
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusLoading // 仅用于等待系统授权
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Result 边界操作的统一返回：成功值、错误或等待中
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

func Success[T any](v T) Result[T] {
	return Result[T]{Status: StatusSuccess, Value: v}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}

func Loading[T any]() Result[T] {
	return Result[T]{Status: StatusLoading}
}

func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

func (r Result[T]) Pending() bool { return r.Status == StatusLoading }

// Unwrap 转为 (值, error)；等待中返回 ErrPermissionPending
func (r Result[T]) Unwrap() (T, error) {
	switch r.Status {
	case StatusSuccess:
		return r.Value, nil
	case StatusLoading:
		return r.Value, ErrPermissionPending
	default:
		return r.Value, r.Err
	}
}
