package msg

import (
	"encoding/gob"
	"io"

	"github.com/onee-only/capstat/internal/worker"
)

type RequestType uint8

const (
	RequestTypeAnalyze RequestType = 1 + iota
	RequestTypeStatus
	RequestTypeList
	RequestTypeCancel
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeAnalyze:
		return "analyze"
	case RequestTypeStatus:
		return "status"
	case RequestTypeList:
		return "list"
	case RequestTypeCancel:
		return "cancel"
	}
	return "unknown"
}

type Request struct {
	Type RequestType

	Payload any
}

func (r *Request) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(r)
}

func DecodeRequest(r io.Reader) (req *Request, err error) {
	req = &Request{}
	err = gob.NewDecoder(r).Decode(req)
	return
}

type AnalyzePayload struct {
	Opts worker.WorkerOptions
}

func registerRequest() {
	gob.Register(AnalyzePayload{})
}
