package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSchema_AttachmentFields(t *testing.T) {
	schema := &UploadSchema{
		Fields: []FieldDefinition{
			{Name: "id", Type: FieldTypeInt},
			{Name: "photo", Type: FieldTypeAttachment},
			{Name: "scan", Type: FieldTypeAttachmentV2},
		},
	}

	assert.True(t, schema.HasAttachmentFields())
	assert.Len(t, schema.AttachmentFields(), 2)
}

func TestUploadSchema_NoAttachmentFields(t *testing.T) {
	schema := &UploadSchema{
		Fields: []FieldDefinition{{Name: "id", Type: FieldTypeInt}},
	}

	assert.False(t, schema.HasAttachmentFields())
	assert.Empty(t, schema.AttachmentFields())
}

func TestTableMapping_ResolveReturnsHighestRevision(t *testing.T) {
	mapping := NewTableMapping()
	v1 := &UploadSchema{Key: SchemaKey{SchemaID: "s1", Revision: 1}}
	v2 := &UploadSchema{Key: SchemaKey{SchemaID: "s1", Revision: 2}}

	mapping.Add("syn1", v1)
	mapping.Add("syn1", v2)

	resolved, ok := mapping.Resolve("syn1")
	require.True(t, ok)
	assert.Equal(t, 2, resolved.Key.Revision)
}

func TestTableMapping_ResolveBreaksTiesByInsertionOrder(t *testing.T) {
	mapping := NewTableMapping()
	first := &UploadSchema{Key: SchemaKey{SchemaID: "s1", Revision: 1}}
	second := &UploadSchema{Key: SchemaKey{SchemaID: "s2", Revision: 1}}

	mapping.Add("syn1", first)
	mapping.Add("syn1", second)

	resolved, ok := mapping.Resolve("syn1")
	require.True(t, ok)
	assert.Same(t, first, resolved)
}

func TestTableMapping_ResolveUnknownTable(t *testing.T) {
	mapping := NewTableMapping()
	_, ok := mapping.Resolve("syn-unknown")
	assert.False(t, ok)
}

func TestTableMapping_TableIDsPreservesInsertionOrder(t *testing.T) {
	mapping := NewTableMapping()
	mapping.Add("syn2", &UploadSchema{})
	mapping.Add("syn1", &UploadSchema{})

	assert.Equal(t, []string{"syn2", "syn1"}, mapping.TableIDs())
	assert.Equal(t, 2, mapping.Len())
}

func TestSurveyTableSet_NilIsEmpty(t *testing.T) {
	var set *SurveyTableSet
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, set.IDs())
}
