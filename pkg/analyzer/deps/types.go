package deps

// Module is one node in the dependency graph. Modules are source files;
// IDs index into the Result's Modules slice.
type Module struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Edge is one import dependency between in-project modules.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ExternalImport records an import that resolves to nothing in the
// analyzed set: a standard-library or third-party target.
type ExternalImport struct {
	Module int    `json:"module"`
	Import string `json:"import"`
}

// Cycle is a strongly connected component with more than one member, or
// a module that imports itself. Members are listed in depth-first
// traversal order over the component's import edges, starting from the
// smallest module ID and taking the smallest successor first.
type Cycle struct {
	Members []int `json:"members"`
}

// ModuleMetric carries the coupling numbers for one module. Instability
// is fanOut / (fanIn + fanOut): 0 means everything depends on this
// module and it depends on nothing, 1 the reverse. Isolated modules
// score 0. Self-imports count toward neither fan.
type ModuleMetric struct {
	Module      int     `json:"module"`
	FanIn       int     `json:"fan_in"`
	FanOut      int     `json:"fan_out"`
	Instability float64 `json:"instability"`
}

// FindingType identifies a dependency-level diagnosis.
type FindingType string

const (
	// FindingGodModule marks a module whose fan-out exceeds the
	// configured ceiling.
	FindingGodModule FindingType = "god_module"
)

// Finding is one dependency-level diagnosis.
type Finding struct {
	Type       FindingType `json:"type"`
	Module     string      `json:"module"`
	Message    string      `json:"message"`
	Confidence float64     `json:"confidence"`
}
