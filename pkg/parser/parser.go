package parser

// Encoding names the decoder that produced the text handed to the cleaner.
type Encoding string

const (
	EncodingUTF8      Encoding = "utf-8"
	EncodingUTF16     Encoding = "utf-16"
	EncodingLatin1    Encoding = "latin-1"
	EncodingUTF8Lossy Encoding = "utf-8-lossy"
	// EncodingText marks input that arrived as a Go string and was not decoded.
	EncodingText Encoding = "text"
)

// CorruptionReport counts how much of the input needed repair.
//
// Every physical line lands in exactly one of EmptyLines or the kept set;
// kept lines may additionally be counted by one or more corruption classes.
type CorruptionReport struct {
	TotalLines           int      `json:"total_lines"`
	CorruptedLines       int      `json:"corrupted_lines"`
	TruncatedLines       int      `json:"truncated_lines"`
	EncodingSuspectLines int      `json:"encoding_suspect_lines"`
	RecoveredLines       int      `json:"recovered_lines"`
	EmptyLines           int      `json:"empty_lines"`
	Encoding             Encoding `json:"encoding"`
}

// KeptLines returns the number of lines present in the cleaned text.
func (r CorruptionReport) KeptLines() int {
	return r.TotalLines - r.EmptyLines
}

// PatternSet holds lexical patterns in scan order. Duplicates are kept.
type PatternSet struct {
	Timestamps     []string `json:"timestamps"`
	IPAddresses    []string `json:"ip_addresses"`
	ErrorCodes     []string `json:"error_codes"`
	SeverityLevels []string `json:"severity_levels"`
}

// Len returns the total number of matches across all kinds.
func (p PatternSet) Len() int {
	return len(p.Timestamps) + len(p.IPAddresses) + len(p.ErrorCodes) + len(p.SeverityLevels)
}
