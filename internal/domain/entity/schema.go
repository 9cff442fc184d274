package entity

// FieldType is the closed enumeration of scalar and attachment column
// types a schema field can declare.
type FieldType string

const (
	FieldTypeString        FieldType = "STRING"
	FieldTypeInt           FieldType = "INT"
	FieldTypeFloat         FieldType = "FLOAT"
	FieldTypeBoolean       FieldType = "BOOLEAN"
	FieldTypeDate          FieldType = "DATE"
	FieldTypeCalendarDate  FieldType = "CALENDAR_DATE"
	FieldTypeAttachment    FieldType = "ATTACHMENT"
	FieldTypeAttachmentV2  FieldType = "ATTACHMENT_V2"
)

// IsAttachment reports whether values of this type are remote
// file-handle ids rather than scalars.
func (t FieldType) IsAttachment() bool {
	return t == FieldTypeAttachment || t == FieldTypeAttachmentV2
}

// FieldDefinition names one column of an UploadSchema.
type FieldDefinition struct {
	Name string
	Type FieldType
}

// SchemaKey identifies one revision of one schema within a study.
type SchemaKey struct {
	StudyID  string
	SchemaID string
	Revision int
}

// UploadSchema is an ordered set of field definitions backing one
// remote table.
type UploadSchema struct {
	Key    SchemaKey
	Fields []FieldDefinition
}

// AttachmentFields returns the subset of Fields whose type is
// attachment-kind.
func (s *UploadSchema) AttachmentFields() []FieldDefinition {
	var out []FieldDefinition
	for _, f := range s.Fields {
		if f.Type.IsAttachment() {
			out = append(out, f)
		}
	}
	return out
}

// HasAttachmentFields reports whether the schema declares any
// attachment-kind columns.
func (s *UploadSchema) HasAttachmentFields() bool {
	for _, f := range s.Fields {
		if f.Type.IsAttachment() {
			return true
		}
	}
	return false
}

// TableMapping maps remote table ids to the schema(s) they back. The
// same table id may back more than one schema; Resolve returns the
// latest revision.
type TableMapping struct {
	byTable map[string][]*UploadSchema
	order   []string
}

// NewTableMapping builds an empty TableMapping.
func NewTableMapping() *TableMapping {
	return &TableMapping{byTable: make(map[string][]*UploadSchema)}
}

// Add registers a schema under its table id.
func (m *TableMapping) Add(tableID string, schema *UploadSchema) {
	if _, ok := m.byTable[tableID]; !ok {
		m.order = append(m.order, tableID)
	}
	m.byTable[tableID] = append(m.byTable[tableID], schema)
}

// Resolve returns the highest-revision schema registered for tableID.
// Ties are broken in favor of whichever schema was added first.
func (m *TableMapping) Resolve(tableID string) (*UploadSchema, bool) {
	schemas, ok := m.byTable[tableID]
	if !ok || len(schemas) == 0 {
		return nil, false
	}

	best := schemas[0]
	for _, s := range schemas[1:] {
		if s.Key.Revision > best.Key.Revision {
			best = s
		}
	}
	return best, true
}

// TableIDs returns the table ids registered, in insertion order.
func (m *TableMapping) TableIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports the number of distinct table ids registered.
func (m *TableMapping) Len() int {
	return len(m.byTable)
}

// SurveyTableSet is the set of remote table ids carrying survey
// metadata for a study.
type SurveyTableSet struct {
	ids []string
}

// NewSurveyTableSet builds a SurveyTableSet from a list of table ids.
func NewSurveyTableSet(ids ...string) *SurveyTableSet {
	return &SurveyTableSet{ids: ids}
}

// IDs returns the survey table ids.
func (s *SurveyTableSet) IDs() []string {
	if s == nil {
		return nil
	}
	return s.ids
}

// Len reports how many survey table ids are in the set.
func (s *SurveyTableSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}
