package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 知识片段字段
const (
	FieldID          = "id"
	FieldVector      = "vector"
	FieldOwnerID     = "owner_id"
	FieldSourceID    = "source_id"
	FieldChunkIndex  = "chunk_index"
	FieldTotalChunks = "total_chunks"
	FieldCategory    = "category"
	FieldSubjectRef  = "subject_ref"
	FieldTextContent = "text_content"

	// DefaultVectorDimension 未配置维度时的默认值
	DefaultVectorDimension = 1024

	maxTextContentLen = 65535
)

var outputFields = []string{
	FieldID, FieldOwnerID, FieldSourceID, FieldChunkIndex, FieldTotalChunks,
	FieldCategory, FieldSubjectRef, FieldTextContent,
}

func varChar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:     name,
		DataType: entity.FieldTypeVarChar,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLen),
		},
	}
}

// KnowledgeChunksSchema 每个 owner 一个集合，结构相同
func KnowledgeChunksSchema(collection string, dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	id := varChar(FieldID, 128)
	id.PrimaryKey = true
	id.AutoID = false

	return &entity.Schema{
		CollectionName: collection,
		Description:    "Knowledge chunks for semantic search",
		Fields: []*entity.Field{
			id,
			{
				Name:     FieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			varChar(FieldOwnerID, 64),
			varChar(FieldSourceID, 128),
			{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: FieldTotalChunks, DataType: entity.FieldTypeInt64},
			varChar(FieldCategory, 64),
			varChar(FieldSubjectRef, 128),
			varChar(FieldTextContent, maxTextContentLen),
		},
	}
}
