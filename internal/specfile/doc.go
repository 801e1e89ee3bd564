package specfile

// The doc* types are the on-disk wire shape of a bintest specification
// document, decoded with github.com/pelletier/go-toml/v2 (suites and
// files authored in TOML, the teacher's own configuration format) or
// gopkg.in/yaml.v3 (an alternate surface syntax selected by file
// extension). Every field carries both tags so the same struct tree
// serves both decoders. Converting a decoded doc into internal/model's
// typed tree is convert.go's job; this file only names the shape.

// docSuite is the shape of a suite-level config document
// (bintest.toml/bintest.yaml): suite defaults plus setup/teardown/
// databases. It carries no `tests`; those live in per-file spec
// documents discovered alongside it.
type docSuite struct {
	Binary        string            `toml:"binary" yaml:"binary"`
	Timeout       string            `toml:"timeout" yaml:"timeout"`
	Env           map[string]string `toml:"env" yaml:"env"`
	InheritEnv    *bool             `toml:"inherit_env" yaml:"inherit_env"`
	Serial        bool              `toml:"serial" yaml:"serial"`
	CaptureFSDiff *bool             `toml:"capture_fs_diff" yaml:"capture_fs_diff"`
	SandboxDir    string            `toml:"sandbox_dir" yaml:"sandbox_dir"`
	Setup         []docAction       `toml:"setup" yaml:"setup"`
	Teardown      []docAction       `toml:"teardown" yaml:"teardown"`
	Databases     map[string]docDB  `toml:"databases" yaml:"databases"`
}

// docFile is the shape of one spec file: file-level overrides plus its
// ordered list of tests.
type docFile struct {
	Binary        string            `toml:"binary" yaml:"binary"`
	Timeout       string            `toml:"timeout" yaml:"timeout"`
	Env           map[string]string `toml:"env" yaml:"env"`
	InheritEnv    *bool             `toml:"inherit_env" yaml:"inherit_env"`
	Serial        bool              `toml:"serial" yaml:"serial"`
	CaptureFSDiff *bool             `toml:"capture_fs_diff" yaml:"capture_fs_diff"`
	Databases     map[string]docDB  `toml:"databases" yaml:"databases"`
	Setup         []docAction       `toml:"setup" yaml:"setup"`
	Teardown      []docAction       `toml:"teardown" yaml:"teardown"`
	Tests         []docTest         `toml:"tests" yaml:"tests"`
}

type docDB struct {
	Driver    string `toml:"driver" yaml:"driver"`
	URL       string `toml:"url" yaml:"url"`
	Isolation string `toml:"isolation" yaml:"isolation"`
}

type docTest struct {
	Name     string            `toml:"name" yaml:"name"`
	Serial   bool              `toml:"serial" yaml:"serial"`
	Env      map[string]string `toml:"env" yaml:"env"`
	SkipIf   []docCond     `toml:"skip_if" yaml:"skip_if"`
	Require  []docCond     `toml:"require" yaml:"require"`
	Setup    []docAction   `toml:"setup" yaml:"setup"`
	Teardown []docAction   `toml:"teardown" yaml:"teardown"`
	Steps    []docStep     `toml:"steps" yaml:"steps"`

	// Legacy single-step shorthand (spec.md §3: "either a single implicit
	// step ... or an ordered non-empty list of Steps"). When Steps is
	// empty and Run is set, convert.go synthesizes a single step named
	// after the test.
	Run    *docRunSpec  `toml:"run" yaml:"run"`
	Expect *docExpect   `toml:"expect" yaml:"expect"`
}

type docStep struct {
	Name     string      `toml:"name" yaml:"name"`
	Setup    []docAction `toml:"setup" yaml:"setup"`
	Run      docRunSpec  `toml:"run" yaml:"run"`
	Expect   docExpect   `toml:"expect" yaml:"expect"`
	Teardown []docAction `toml:"teardown" yaml:"teardown"`
}

type docRunSpec struct {
	Cmd     string            `toml:"cmd" yaml:"cmd"`
	Args    []string          `toml:"args" yaml:"args"`
	Stdin   string            `toml:"stdin" yaml:"stdin"`
	Timeout string            `toml:"timeout" yaml:"timeout"`
	Env     map[string]string `toml:"env" yaml:"env"`
}

type docExpect struct {
	Exit   *int         `toml:"exit" yaml:"exit"`
	Signal *int         `toml:"signal" yaml:"signal"`
	Stdout *docMatcher  `toml:"stdout" yaml:"stdout"`
	Stderr *docMatcher  `toml:"stderr" yaml:"stderr"`
	Files  []docFileA   `toml:"files" yaml:"files"`
	Tree   *docTree     `toml:"tree" yaml:"tree"`
	SQL    []docSQLA    `toml:"sql" yaml:"sql"`
}

// docMatcher decodes any of the three matcher shapes: an inline table
// with exactly one of equals/contains/regex set.
type docMatcher struct {
	Equals   *string `toml:"equals" yaml:"equals"`
	Contains *string `toml:"contains" yaml:"contains"`
	Regex    *string `toml:"regex" yaml:"regex"`
}

type docFileA struct {
	Path     string      `toml:"path" yaml:"path"`
	Exists   *bool       `toml:"exists" yaml:"exists"`
	Contents *docMatcher `toml:"contents" yaml:"contents"`
}

type docTree struct {
	Root     string     `toml:"root" yaml:"root"`
	Contains []docFileA `toml:"contains" yaml:"contains"`
	Excludes []string   `toml:"excludes" yaml:"excludes"`
}

// docSQLA decodes the seven sql-assertion variants via a `type`
// discriminator, the same convention docAction and docCond use.
type docSQLA struct {
	Type     string      `toml:"type" yaml:"type"`
	Database string      `toml:"database" yaml:"database"`

	Query        string      `toml:"query" yaml:"query"`
	Returns      *docMatcher `toml:"returns" yaml:"returns"`
	ReturnsEmpty bool        `toml:"returns_empty" yaml:"returns_empty"`
	ReturnsNull  bool        `toml:"returns_null" yaml:"returns_null"`
	ReturnsOneRow bool       `toml:"returns_one_row" yaml:"returns_one_row"`

	Table string `toml:"table" yaml:"table"`

	RowCountTable       string `toml:"row_count_table" yaml:"row_count_table"`
	Equals        *int64 `toml:"equals" yaml:"equals"`
	GreaterThan   *int64 `toml:"greater_than" yaml:"greater_than"`
	LessThan      *int64 `toml:"less_than" yaml:"less_than"`
}

// docAction decodes all eleven Action variants via a `type` discriminator
// (spec.md §9 design note: "actions form a tagged variant").
type docAction struct {
	Type string `toml:"type" yaml:"type"`

	// write_file
	Path     string `toml:"path" yaml:"path"`
	Contents string `toml:"contents" yaml:"contents"`

	// copy_file / copy_dir
	From string `toml:"from" yaml:"from"`
	To   string `toml:"to" yaml:"to"`

	// run
	Run   docRunSpec `toml:"run" yaml:"run"`
	Shell bool       `toml:"shell" yaml:"shell"`

	// sql
	Database   string   `toml:"database" yaml:"database"`
	Statements []string `toml:"statements" yaml:"statements"`
	OnError    string   `toml:"on_error" yaml:"on_error"`

	// sql_file
	SQLFile string `toml:"sql_file" yaml:"sql_file"`

	// db_snapshot / db_restore
	Name string `toml:"name" yaml:"name"`
}

// docCond decodes the three Condition variants via a `type`
// discriminator.
type docCond struct {
	Type string `toml:"type" yaml:"type"`

	// env
	Name string `toml:"name" yaml:"name"`

	// cmd
	Cmd  string   `toml:"cmd" yaml:"cmd"`
	Args []string `toml:"args" yaml:"args"`

	// sql
	Database  string `toml:"database" yaml:"database"`
	Query     string `toml:"query" yaml:"query"`
	Predicate string `toml:"predicate" yaml:"predicate"`
}
