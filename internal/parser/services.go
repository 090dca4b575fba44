package parser

import "strings"

// ServiceRecord is one unit from `systemctl list-units`.
type ServiceRecord struct {
	Unit        string
	Load        string
	Active      string
	Sub         string
	Description string
}

// Name returns the unit name without its ".service" suffix.
func (s ServiceRecord) Name() string {
	return strings.TrimSuffix(s.Unit, ".service")
}

// ParseServices parses
// `systemctl list-units --type=service --all --no-legend --plain`:
//
//	cron.service  loaded active running Regular background program processing daemon
//
// A leading status bullet, as printed without --plain, is tolerated.
func ParseServices(text string) []ServiceRecord {
	var records []ServiceRecord
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && (fields[0] == "●" || fields[0] == "*") {
			fields = fields[1:]
		}
		if len(fields) < 4 || !strings.Contains(fields[0], ".") {
			continue
		}
		records = append(records, ServiceRecord{
			Unit:        fields[0],
			Load:        fields[1],
			Active:      fields[2],
			Sub:         fields[3],
			Description: strings.Join(fields[4:], " "),
		})
	}
	return records
}
