package fedora

// Status is the outcome of an object retrieval
type Status int

const (
	// StatusFound means the object and its datastreams were read
	StatusFound Status = iota
	// StatusNotFound means the repository has no object with that pid
	StatusNotFound
	// StatusTransientError covers every other failure: permissions,
	// repository faults, timeouts and unreadable responses
	StatusTransientError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Result of GetObject. Object is set only when Status is StatusFound,
// Err only when it is not.
type Result struct {
	Status Status
	Object *Object
	Err    error
}

// Found wraps a retrieved object
func Found(obj *Object) Result {
	return Result{Status: StatusFound, Object: obj}
}

// NotFound reports a missing object
func NotFound(err error) Result {
	return Result{Status: StatusNotFound, Err: err}
}

// TransientError reports a failure that says nothing about whether the object exists
func TransientError(err error) Result {
	return Result{Status: StatusTransientError, Err: err}
}

// failed classifies err as NotFound or TransientError
func failed(err error) Result {
	if IsNotFound(err) {
		return NotFound(err)
	}
	return TransientError(err)
}
