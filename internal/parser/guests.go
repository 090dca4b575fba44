package parser

import (
	"encoding/json"
	"strconv"
	"strings"
)

// GuestKind distinguishes containers from VMs.
type GuestKind string

const (
	KindContainer GuestKind = "ct"
	KindVM        GuestKind = "vm"
)

// GuestRecord is one row of `pct list` or `qm list`.
type GuestRecord struct {
	Kind     GuestKind
	ID       string
	Name     string
	Status   string
	Lock     string // containers only
	MemoryMB int    // VMs only
	DiskGB   float64
	PID      int
}

// ParseContainers parses `pct list`:
//
//	VMID       Status     Lock         Name
//	105        running                 web01
//
// The Lock column is usually empty, so a row has three or four fields.
func ParseContainers(text string) []GuestRecord {
	var records []GuestRecord
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !isNumeric(fields[0]) {
			continue
		}
		rec := GuestRecord{Kind: KindContainer, ID: fields[0], Status: fields[1]}
		switch {
		case len(fields) >= 4:
			rec.Lock = fields[2]
			rec.Name = fields[3]
		case len(fields) == 3:
			rec.Name = fields[2]
		}
		records = append(records, rec)
	}
	return records
}

// ParseVMs parses `qm list`:
//
//	VMID NAME                 STATUS     MEM(MB)    BOOTDISK(GB) PID
//	 101 ubuntu-vm            running    2048              32.00 12345
func ParseVMs(text string) []GuestRecord {
	var records []GuestRecord
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || !isNumeric(fields[0]) {
			continue
		}
		rec := GuestRecord{Kind: KindVM, ID: fields[0], Name: fields[1], Status: fields[2]}
		if len(fields) > 3 {
			rec.MemoryMB, _ = strconv.Atoi(fields[3])
		}
		if len(fields) > 4 {
			rec.DiskGB, _ = strconv.ParseFloat(fields[4], 64)
		}
		if len(fields) > 5 {
			rec.PID, _ = strconv.Atoi(fields[5])
		}
		records = append(records, rec)
	}
	return records
}

// GuestExec is the decoded status printed by `qm guest exec`.
type GuestExec struct {
	Exited   bool
	ExitCode int // -1 when the command had not exited
	PID      int // guest process, reported while it is still running
	Output   string
}

// ParseGuestExec decodes the JSON that `qm guest exec` prints:
//
//	{"exitcode": 0, "exited": 1, "out-data": "...", "err-data": "..."}
//
// It reports false when text is not such a document.
func ParseGuestExec(text string) (GuestExec, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return GuestExec{}, false
	}

	var doc struct {
		ExitCode *int            `json:"exitcode"`
		Exited   json.RawMessage `json:"exited"`
		OutData  string          `json:"out-data"`
		ErrData  string          `json:"err-data"`
		PID      int             `json:"pid"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return GuestExec{}, false
	}
	if doc.Exited == nil && doc.ExitCode == nil {
		return GuestExec{}, false
	}

	ge := GuestExec{ExitCode: -1, Output: doc.OutData + doc.ErrData, PID: doc.PID}
	switch strings.TrimSpace(string(doc.Exited)) {
	case "1", "true":
		ge.Exited = true
	}
	if doc.ExitCode != nil {
		ge.Exited = true
		ge.ExitCode = *doc.ExitCode
	}
	return ge, true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
