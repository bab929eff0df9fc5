package differ

// Operation names carried by OpError.
const (
	OpList         = "list"
	OpRemoveFolder = "remove folder"
	OpRemoveFile   = "remove file"
	OpCreateFolder = "create folder"
	OpCompare      = "compare"
	OpCopy         = "copy"
)

// OpError records a failed filesystem operation on one entry.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
