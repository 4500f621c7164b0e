package models

import "time"

// Link binds a connector to concrete LINK input values.
type Link struct {
	ID             LinkID         `json:"id"`
	Name           string         `json:"name" validate:"required,column=SQ_LINK.SQ_LNK_NAME"`
	ConfigurableID ConfigurableID `json:"configurable_id"`
	CreationUser   string         `json:"creation_user" validate:"column=SQ_LINK.SQ_LNK_CREATION_USER"`
	CreationDate   time.Time      `json:"creation_date"`
	UpdateUser     string         `json:"update_user" validate:"column=SQ_LINK.SQ_LNK_UPDATE_USER"`
	UpdateDate     time.Time      `json:"update_date"`
	Enabled        bool           `json:"enabled"`
	Values         InputValues    `json:"values,omitempty"`
}

// Job binds a FROM link and a TO link to concrete JOB input values.
type Job struct {
	ID           JobID       `json:"id"`
	Name         string      `json:"name" validate:"required,column=SQ_JOB.SQB_NAME"`
	FromLinkID   LinkID      `json:"from_link_id"`
	ToLinkID     LinkID      `json:"to_link_id"`
	CreationUser string      `json:"creation_user" validate:"column=SQ_JOB.SQB_CREATION_USER"`
	CreationDate time.Time   `json:"creation_date"`
	UpdateUser   string      `json:"update_user" validate:"column=SQ_JOB.SQB_UPDATE_USER"`
	UpdateDate   time.Time   `json:"update_date"`
	Enabled      bool        `json:"enabled"`
	Values       InputValues `json:"values,omitempty"`
}

// FormInput is an input with its current value, if any.
type FormInput struct {
	Input Input       `json:"input"`
	Value *InputValue `json:"value,omitempty"`
}

// FormConfig is a config with its inputs in display order.
type FormConfig struct {
	Config Config      `json:"config"`
	Inputs []FormInput `json:"inputs"`
}

// Form is the ordered config tree one configurable contributes to an
// instance, used to rebuild an editing form.
type Form struct {
	Configurable Configurable `json:"configurable"`
	Type         ConfigType   `json:"type"`
	// Direction is set when the form only holds the configs that apply to
	// one side of a job.
	Direction Direction    `json:"direction,omitempty"`
	Configs   []FormConfig `json:"configs"`
}
