package schema

import "fmt"

// DefaultSchema is the PostgreSQL schema that holds the repository tables.
const DefaultSchema = "SQOOP"

// Version is the layout version recorded in SQ_SYSTEM under VersionKey.
const (
	Version    = "1"
	VersionKey = "version"
)

// Table names.
const (
	TableSystem              = "SQ_SYSTEM"
	TableDirection           = "SQ_DIRECTION"
	TableConfigurable        = "SQ_CONFIGURABLE"
	TableConnectorDirections = "SQ_CONNECTOR_DIRECTIONS"
	TableConfig              = "SQ_CONFIG"
	TableConfigDirections    = "SQ_CONFIG_DIRECTIONS"
	TableInput               = "SQ_INPUT"
	TableLink                = "SQ_LINK"
	TableJob                 = "SQ_JOB"
	TableLinkInput           = "SQ_LINK_INPUT"
	TableJobInput            = "SQ_JOB_INPUT"
	TableSubmission          = "SQ_SUBMISSION"
	TableCounterGroup        = "SQ_COUNTER_GROUP"
	TableCounter             = "SQ_COUNTER"
	TableCounterSubmission   = "SQ_COUNTER_SUBMISSION"
)

func id(name string) Column { return Column{Name: name, Type: Serial} }

func varchar(name string, size int) Column { return Column{Name: name, Type: Varchar, Size: size} }

func fk(name, table, column string) Column {
	return Column{Name: name, Type: BigInt, References: &Reference{Table: table, Column: column}}
}

func cascade(c Column) Column {
	c.References.OnDeleteCascade = true
	return c
}

func unique(c Column) Column {
	c.Unique = true
	return c
}

func nullDefault(c Column) Column {
	c.Default = "NULL"
	return c
}

// Tables is the repository layout in creation order. Tables only reference
// tables declared before them.
var Tables = []Table{
	{
		Name: TableSystem,
		Columns: []Column{
			id("SQM_ID"),
			varchar("SQM_KEY", 64),
			varchar("SQM_VALUE", 64),
		},
	},
	{
		Name: TableDirection,
		Columns: []Column{
			id("SQD_ID"),
			varchar("SQD_NAME", 64),
		},
	},
	{
		Name: TableConfigurable,
		Columns: []Column{
			id("SQC_ID"),
			unique(varchar("SQC_NAME", 64)),
			varchar("SQC_TYPE", 32),
			varchar("SQC_CLASS", 255),
			varchar("SQC_VERSION", 64),
		},
	},
	{
		Name: TableConnectorDirections,
		Columns: []Column{
			id("SQCD_ID"),
			fk("SQCD_CONNECTOR", TableConfigurable, "SQC_ID"),
			fk("SQCD_DIRECTION", TableDirection, "SQD_ID"),
		},
	},
	{
		Name: TableConfig,
		Columns: []Column{
			id("SQ_CFG_ID"),
			fk("SQ_CFG_CONFIGURABLE", TableConfigurable, "SQC_ID"),
			varchar("SQ_CFG_NAME", 64),
			varchar("SQ_CFG_TYPE", 32),
			{Name: "SQ_CFG_INDEX", Type: SmallInt},
		},
		Unique: [][]string{{"SQ_CFG_NAME", "SQ_CFG_TYPE", "SQ_CFG_CONFIGURABLE"}},
	},
	{
		Name: TableConfigDirections,
		Columns: []Column{
			id("SQ_CFG_DIR_ID"),
			fk("SQ_CFG_DIR_CONFIG", TableConfig, "SQ_CFG_ID"),
			fk("SQ_CFG_DIR_DIRECTION", TableDirection, "SQD_ID"),
		},
	},
	{
		Name: TableInput,
		Columns: []Column{
			id("SQI_ID"),
			varchar("SQI_NAME", 64),
			fk("SQI_CONFIG", TableConfig, "SQ_CFG_ID"),
			{Name: "SQI_INDEX", Type: SmallInt},
			varchar("SQI_TYPE", 32),
			{Name: "SQI_STRMASK", Type: Boolean},
			{Name: "SQI_STRLENGTH", Type: SmallInt},
			varchar("SQI_ENUMVALS", 100),
		},
		Unique: [][]string{{"SQI_NAME", "SQI_TYPE", "SQI_CONFIG"}},
	},
	{
		Name: TableLink,
		Columns: []Column{
			id("SQ_LNK_ID"),
			fk("SQ_LNK_CONFIGURABLE", TableConfigurable, "SQC_ID"),
			unique(varchar("SQ_LNK_NAME", 32)),
			{Name: "SQ_LNK_CREATION_DATE", Type: Timestamp},
			nullDefault(varchar("SQ_LNK_CREATION_USER", 32)),
			{Name: "SQ_LNK_UPDATE_DATE", Type: Timestamp},
			nullDefault(varchar("SQ_LNK_UPDATE_USER", 32)),
			{Name: "SQ_LNK_ENABLED", Type: Boolean, Default: "TRUE"},
		},
	},
	{
		Name: TableJob,
		Columns: []Column{
			id("SQB_ID"),
			fk("SQB_FROM_LINK", TableLink, "SQ_LNK_ID"),
			fk("SQB_TO_LINK", TableLink, "SQ_LNK_ID"),
			unique(varchar("SQB_NAME", 64)),
			{Name: "SQB_CREATION_DATE", Type: Timestamp},
			nullDefault(varchar("SQB_CREATION_USER", 32)),
			{Name: "SQB_UPDATE_DATE", Type: Timestamp},
			nullDefault(varchar("SQB_UPDATE_USER", 32)),
			{Name: "SQB_ENABLED", Type: Boolean, Default: "TRUE"},
		},
	},
	{
		Name: TableLinkInput,
		Columns: []Column{
			fk("SQ_LNKI_LINK", TableLink, "SQ_LNK_ID"),
			fk("SQ_LNKI_INPUT", TableInput, "SQI_ID"),
			varchar("SQ_LNKI_VALUE", 0),
		},
		PrimaryKey: []string{"SQ_LNKI_LINK", "SQ_LNKI_INPUT"},
	},
	{
		Name: TableJobInput,
		Columns: []Column{
			fk("SQBI_JOB", TableJob, "SQB_ID"),
			fk("SQBI_INPUT", TableInput, "SQI_ID"),
			varchar("SQBI_VALUE", 1000),
		},
		PrimaryKey: []string{"SQBI_JOB", "SQBI_INPUT"},
	},
	{
		Name: TableSubmission,
		Columns: []Column{
			id("SQS_ID"),
			cascade(fk("SQS_JOB", TableJob, "SQB_ID")),
			varchar("SQS_STATUS", 20),
			{Name: "SQS_CREATION_DATE", Type: Timestamp},
			nullDefault(varchar("SQS_CREATION_USER", 32)),
			{Name: "SQS_UPDATE_DATE", Type: Timestamp},
			nullDefault(varchar("SQS_UPDATE_USER", 32)),
			varchar("SQS_EXTERNAL_ID", 50),
			varchar("SQS_EXTERNAL_LINK", 150),
			varchar("SQS_ERROR_SUMMARY", 150),
			varchar("SQS_ERROR_DETAILS", 750),
		},
	},
	{
		Name: TableCounterGroup,
		Columns: []Column{
			id("SQG_ID"),
			unique(varchar("SQG_NAME", 75)),
		},
	},
	{
		Name: TableCounter,
		Columns: []Column{
			id("SQR_ID"),
			unique(varchar("SQR_NAME", 75)),
		},
	},
	{
		Name: TableCounterSubmission,
		Columns: []Column{
			fk("SQRS_GROUP", TableCounterGroup, "SQG_ID"),
			fk("SQRS_COUNTER", TableCounter, "SQR_ID"),
			cascade(fk("SQRS_SUBMISSION", TableSubmission, "SQS_ID")),
			{Name: "SQRS_VALUE", Type: BigInt},
		},
		PrimaryKey: []string{"SQRS_GROUP", "SQRS_COUNTER", "SQRS_SUBMISSION"},
	},
}

var (
	tablesByName = map[string]Table{}
	columnOwners = map[string]string{}
)

func init() {
	for _, t := range Tables {
		tablesByName[t.Name] = t
		for _, c := range t.Columns {
			if owner, dup := columnOwners[c.Name]; dup {
				panic(fmt.Sprintf("schema: column %s declared by both %s and %s", c.Name, owner, t.Name))
			}
			columnOwners[c.Name] = t.Name
		}
	}
}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, bool) {
	t, ok := tablesByName[name]
	return t, ok
}

// Width returns the VARCHAR width of table.column, or 0 when unbounded.
// It panics on an unknown column.
func Width(table, column string) int {
	t, ok := tablesByName[table]
	if !ok {
		panic("schema: unknown table " + table)
	}
	c, ok := t.Column(column)
	if !ok {
		panic("schema: unknown column " + table + "." + column)
	}
	return c.Size
}
