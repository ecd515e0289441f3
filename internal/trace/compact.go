package trace

import (
	"strconv"
	"strings"
)

// Record types emitted by "ffprobe -print_format compact".
const (
	TypePacket = "packet"
	TypeFormat = "format"
)

// Record is one parsed compact line: "type|key=value|key=value".
type Record struct {
	Type       string
	Properties map[string]string
}

// Segment locates one still image inside the composite artifact.
type Segment struct {
	ByteOffset    int64   `json:"byteOffset"`
	SizeInBytes   int64   `json:"sizeInBytes"`
	TimeInSeconds float64 `json:"timeInSeconds"`
}

// ParseLine splits line on '|'. The first field is the record type; every
// other field is split on its first '=' only, so values may contain '='.
// A field without '=' becomes a key with an empty value.
func ParseLine(line string) Record {
	fields := strings.Split(line, "|")
	rec := Record{
		Type:       fields[0],
		Properties: make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		key, value, _ := strings.Cut(field, "=")
		rec.Properties[key] = value
	}
	return rec
}

// IsPacket reports whether the record describes a packet.
func (r Record) IsPacket() bool {
	return r.Type == TypePacket
}

// IsFormat reports whether the record describes the container format.
func (r Record) IsFormat() bool {
	return r.Type == TypeFormat
}

// ExtractSegment converts a packet record into a Segment. It returns false for
// other record types and for packets whose pos, size or pts_time is missing or
// not numeric (ffprobe prints "N/A" for unknown values).
func ExtractSegment(r Record) (Segment, bool) {
	if !r.IsPacket() {
		return Segment{}, false
	}
	pos, ok := r.Properties["pos"]
	if !ok {
		return Segment{}, false
	}
	size, ok := r.Properties["size"]
	if !ok {
		return Segment{}, false
	}
	pts, ok := r.Properties["pts_time"]
	if !ok {
		return Segment{}, false
	}

	offset, err := strconv.ParseInt(strings.TrimSpace(pos), 10, 64)
	if err != nil {
		return Segment{}, false
	}
	length, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return Segment{}, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(pts), 64)
	if err != nil {
		return Segment{}, false
	}

	return Segment{ByteOffset: offset, SizeInBytes: length, TimeInSeconds: seconds}, true
}

// Collector accumulates segments and the format record from parsed lines, in
// the order the lines arrive.
type Collector struct {
	segments []Segment
	format   map[string]string
	lines    int

	// OnRecord, when set, sees every parsed record. Used for diagnostics.
	OnRecord func(Record)
}

// Line parses one line and records what it carries.
func (c *Collector) Line(line string) {
	c.lines++
	rec := ParseLine(line)
	if c.OnRecord != nil {
		c.OnRecord(rec)
	}
	if rec.IsFormat() {
		c.format = rec.Properties
		return
	}
	if seg, ok := ExtractSegment(rec); ok {
		c.segments = append(c.segments, seg)
	}
}

// Segments returns the segments collected so far.
func (c *Collector) Segments() []Segment {
	return c.segments
}

// Format returns the properties of the last format record, or nil.
func (c *Collector) Format() map[string]string {
	return c.format
}

// Lines returns the number of lines seen.
func (c *Collector) Lines() int {
	return c.lines
}
