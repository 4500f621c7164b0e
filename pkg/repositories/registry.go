package repositories

import "github.com/ekaya-inc/ekaya-metastore/pkg/database"

// Registry bundles the repositories of one store.
type Registry struct {
	System        SystemRepository
	Directions    DirectionRepository
	Configurables ConfigurableRepository
	Configs       ConfigRepository
	Inputs        InputRepository
	Links         LinkRepository
	Jobs          JobRepository
	LinkValues    InputValueRepository
	JobValues     InputValueRepository
	Submissions   SubmissionRepository
	Counters      CounterRepository
}

// NewRegistry creates every repository over db.
func NewRegistry(db *database.DB) *Registry {
	return &Registry{
		System:        NewSystemRepository(db),
		Directions:    NewDirectionRepository(db),
		Configurables: NewConfigurableRepository(db),
		Configs:       NewConfigRepository(db),
		Inputs:        NewInputRepository(db),
		Links:         NewLinkRepository(db),
		Jobs:          NewJobRepository(db),
		LinkValues:    NewLinkInputRepository(db),
		JobValues:     NewJobInputRepository(db),
		Submissions:   NewSubmissionRepository(db),
		Counters:      NewCounterRepository(db),
	}
}
