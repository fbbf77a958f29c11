package xlsxstream

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultBatchSize is the number of rows fetched from a source per batch.
const DefaultBatchSize = 1000

// MismatchPolicy selects how a value that does not fit its cell kind is recovered.
type MismatchPolicy int

const (
	// DegradeRow renders the whole row with the all-text default template.
	DegradeRow MismatchPolicy = iota
	// DegradeCell writes only the offending cell as an inline string.
	DegradeCell
	// FailFast aborts the export with the *CellMismatch error.
	FailFast
)

func (p MismatchPolicy) String() string {
	switch p {
	case DegradeRow:
		return "degrade_row"
	case DegradeCell:
		return "degrade_cell"
	case FailFast:
		return "fail_fast"
	}
	return fmt.Sprintf("MismatchPolicy(%d)", int(p))
}

// ParseMismatchPolicy parses the names returned by MismatchPolicy.String.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "degrade_row", "row":
		return DegradeRow, nil
	case "degrade_cell", "cell":
		return DegradeCell, nil
	case "fail_fast", "strict":
		return FailFast, nil
	}
	return DegradeRow, fmt.Errorf("%w: unknown mismatch policy %q", ErrConfiguration, s)
}

// TransformFunc is applied to every batch before it is rendered.
type TransformFunc func(Batch) (Batch, error)

// ExportConfig holds the settings of one export.
type ExportConfig struct {
	BatchSize int
	Encoding  string
	Transform TransformFunc
	Only      []string
	Exclude   []string
	Date1904  bool
	Mismatch  MismatchPolicy
	// Method is the zip compression method of the generated worksheet entry.
	Method uint16

	encoder *encoding.Encoder
}

// ExportOption is a functional option for Export and its building blocks.
type ExportOption func(*ExportConfig) error

// WithBatchSize sets how many rows are pulled from the source at a time.
func WithBatchSize(n int) ExportOption {
	return func(cfg *ExportConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: batch size must be positive, got %d", ErrConfiguration, n)
		}
		cfg.BatchSize = n
		return nil
	}
}

// WithEncoding sets the text encoding of the generated worksheet.
func WithEncoding(name string) ExportOption {
	return func(cfg *ExportConfig) error {
		cfg.Encoding = name
		return nil
	}
}

// WithTransform sets the function applied to each batch of rows.
func WithTransform(fn TransformFunc) ExportOption {
	return func(cfg *ExportConfig) error {
		cfg.Transform = fn
		return nil
	}
}

// WithOnly keeps only the named archive entries. It cannot be combined with WithExclude.
func WithOnly(names ...string) ExportOption {
	return func(cfg *ExportConfig) error {
		cfg.Only = append(cfg.Only, names...)
		return nil
	}
}

// WithExclude drops the named archive entries. It cannot be combined with WithOnly.
func WithExclude(names ...string) ExportOption {
	return func(cfg *ExportConfig) error {
		cfg.Exclude = append(cfg.Exclude, names...)
		return nil
	}
}

// WithDate1904 switches serial dates to the 1904 epoch.
func WithDate1904(enabled bool) ExportOption {
	return func(cfg *ExportConfig) error {
		cfg.Date1904 = enabled
		return nil
	}
}

// WithMismatchPolicy sets how cell kind mismatches are recovered.
func WithMismatchPolicy(p MismatchPolicy) ExportOption {
	return func(cfg *ExportConfig) error {
		if p < DegradeRow || p > FailFast {
			return fmt.Errorf("%w: unknown mismatch policy %d", ErrConfiguration, int(p))
		}
		cfg.Mismatch = p
		return nil
	}
}

// WithCompression sets the compression method of the generated worksheet entry.
func WithCompression(method uint16) ExportOption {
	return func(cfg *ExportConfig) error {
		if method != zip.Store && method != zip.Deflate {
			return fmt.Errorf("%w: unsupported compression method %d", ErrConfiguration, method)
		}
		cfg.Method = method
		return nil
	}
}

// NewExportConfig applies opts over the defaults and validates the result.
func NewExportConfig(opts ...ExportOption) (*ExportConfig, error) {
	cfg := &ExportConfig{
		BatchSize: DefaultBatchSize,
		Encoding:  "utf-8",
		Mismatch:  DegradeRow,
		Method:    zip.Deflate,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.Only) > 0 && len(cfg.Exclude) > 0 {
		return nil, fmt.Errorf("%w: only and exclude cannot be used at the same time", ErrConfiguration)
	}

	enc, err := htmlindex.Get(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrConfiguration, cfg.Encoding)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrConfiguration, cfg.Encoding)
	}
	cfg.Encoding = name
	if name != "utf-8" {
		cfg.encoder = encoding.HTMLEscapeUnsupported(enc.NewEncoder())
	}
	return cfg, nil
}

// encode converts UTF-8 output to the configured encoding.
func (cfg *ExportConfig) encode(b []byte) ([]byte, error) {
	if cfg.encoder == nil {
		return b, nil
	}
	out, err := cfg.encoder.Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("encoding output as %s: %w", cfg.Encoding, err)
	}
	return out, nil
}
