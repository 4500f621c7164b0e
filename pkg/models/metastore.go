package models

import "strconv"

// Surrogate keys of the repository tables.
type (
	DirectionID    int64
	ConfigurableID int64
	ConfigID       int64
	InputID        int64
	LinkID         int64
	JobID          int64
	SubmissionID   int64
)

func (id DirectionID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id ConfigurableID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id ConfigID) String() string       { return strconv.FormatInt(int64(id), 10) }
func (id InputID) String() string        { return strconv.FormatInt(int64(id), 10) }
func (id LinkID) String() string         { return strconv.FormatInt(int64(id), 10) }
func (id JobID) String() string          { return strconv.FormatInt(int64(id), 10) }
func (id SubmissionID) String() string   { return strconv.FormatInt(int64(id), 10) }

// Direction is the role a link or config plays in a transfer.
type Direction string

const (
	DirectionFrom Direction = "FROM"
	DirectionTo   Direction = "TO"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionFrom || d == DirectionTo
}

// DirectionRecord is a row of SQ_DIRECTION.
type DirectionRecord struct {
	ID   DirectionID `json:"id"`
	Name Direction   `json:"name"`
}

// Directions is an optional set of directions. Empty means every direction.
type Directions []Direction

// Allows reports whether the set permits d.
func (ds Directions) Allows(d Direction) bool {
	if len(ds) == 0 {
		return true
	}
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

// ConfigurableType distinguishes connectors from the driver.
type ConfigurableType string

const (
	ConfigurableConnector ConfigurableType = "CONNECTOR"
	ConfigurableDriver    ConfigurableType = "DRIVER"
)

// Configurable is a registered connector or the driver.
type Configurable struct {
	ID         ConfigurableID   `json:"id"`
	Name       string           `json:"name" validate:"required,column=SQ_CONFIGURABLE.SQC_NAME"`
	ClassName  string           `json:"class_name" validate:"required,column=SQ_CONFIGURABLE.SQC_CLASS"`
	Type       ConfigurableType `json:"type" validate:"oneof=CONNECTOR DRIVER"`
	Version    string           `json:"version" validate:"column=SQ_CONFIGURABLE.SQC_VERSION"`
	Directions Directions       `json:"directions,omitempty"`
}

// ConfigType is the category of a config: link-level or job-level.
type ConfigType string

const (
	ConfigLink ConfigType = "LINK"
	ConfigJob  ConfigType = "JOB"
)

// Config is a named, ordered group of inputs.
type Config struct {
	ID             ConfigID       `json:"id"`
	ConfigurableID ConfigurableID `json:"configurable_id"`
	Name           string         `json:"name" validate:"required,column=SQ_CONFIG.SQ_CFG_NAME"`
	Type           ConfigType     `json:"type" validate:"oneof=LINK JOB"`
	Index          int            `json:"index" validate:"min=0,max=32767"`
	Directions     Directions     `json:"directions,omitempty"`
}

// InputType is the value type of an input.
type InputType string

const (
	InputString InputType = "STRING"
	InputMap    InputType = "MAP"
)

// Input is a typed field of a config.
type Input struct {
	ID        InputID   `json:"id"`
	ConfigID  ConfigID  `json:"config_id"`
	Name      string    `json:"name" validate:"required,column=SQ_INPUT.SQI_NAME"`
	Index     int       `json:"index" validate:"min=0,max=32767"`
	Type      InputType `json:"type" validate:"oneof=STRING MAP"`
	Sensitive bool      `json:"sensitive"`
	// MaxLength bounds STRING values. Zero means unbounded.
	MaxLength  int      `json:"max_length" validate:"min=0,max=32767"`
	EnumValues []string `json:"enum_values,omitempty"`
}
