package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PersonIdent is the "name <email> <unix-seconds> <±HHMM>" triple used by
// commit author/committer and tag tagger fields.
type PersonIdent struct {
	Name  string
	Email string
	When  time.Time
}

// String renders the canonical line form (without the leading field name
// and trailing newline).
func (p PersonIdent) String() string {
	when := p.When
	if when.IsZero() {
		when = time.Unix(0, 0).UTC()
	}
	_, offset := when.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %s%02d%02d", p.Name, p.Email, when.Unix(), sign, hh, mm)
}

// ParsePersonIdent parses a "name <email> <unix-seconds> <±HHMM>" line
// (without the leading field name).
func ParsePersonIdent(line string) (PersonIdent, error) {
	var p PersonIdent

	lt := strings.LastIndexByte(line, '<')
	gt := strings.LastIndexByte(line, '>')
	if lt < 0 || gt < lt {
		return p, fmt.Errorf("object: malformed person identity %q", line)
	}

	p.Name = strings.TrimSpace(line[:lt])
	p.Email = line[lt+1 : gt]

	rest := strings.TrimSpace(line[gt+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return p, fmt.Errorf("object: malformed person identity timestamp %q", line)
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return p, fmt.Errorf("object: malformed person identity time %q: %w", fields[0], err)
	}

	offset := fields[1]
	if len(offset) != 5 || (offset[0] != '+' && offset[0] != '-') {
		return p, fmt.Errorf("object: malformed person identity offset %q", offset)
	}
	hh, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return p, fmt.Errorf("object: malformed person identity offset %q: %w", offset, err)
	}
	mm, err := strconv.Atoi(offset[3:5])
	if err != nil {
		return p, fmt.Errorf("object: malformed person identity offset %q: %w", offset, err)
	}
	offsetSeconds := hh*3600 + mm*60
	if offset[0] == '-' {
		offsetSeconds = -offsetSeconds
	}

	loc := time.FixedZone(offset, offsetSeconds)
	p.When = time.Unix(secs, 0).In(loc)
	return p, nil
}
