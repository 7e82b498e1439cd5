package stat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onee-only/capstat/pkg/analyze"
)

type WorkerState uint8

const (
	WorkerStateInit WorkerState = 1 + iota
	WorkerStateUp
	WorkerStateFin
	WorkerStateCancel
	WorkerStateFail
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateInit:
		return "init"
	case WorkerStateUp:
		return "up"
	case WorkerStateFin:
		return "fin"
	case WorkerStateCancel:
		return "cancel"
	case WorkerStateFail:
		return "fail"
	}
	return "unknown"
}

// Done reports whether the worker will not change state again.
func (s WorkerState) Done() bool {
	return s == WorkerStateFin || s == WorkerStateCancel || s == WorkerStateFail
}

func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WorkerState) UnmarshalText(b []byte) error {
	for st := WorkerStateInit; st <= WorkerStateFail; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown worker state %q", b)
}

type Worker struct {
	ID uuid.UUID `json:"id"`

	Src      string                `json:"src"`
	Format   string                `json:"format"`
	Analyses []analyze.AnalyzeType `json:"analyses"`

	State    WorkerState `json:"state"`
	Progress int         `json:"progress"`
	Packets  uint64      `json:"packets"`

	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`

	Error  string `json:"error,omitempty"`
	Report string `json:"report,omitempty"`
}
