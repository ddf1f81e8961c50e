package graph

import (
	"database/sql"
	"time"
)

// 文档处理状态机
const (
	StatusReceived       = "received"
	StatusExtractingText = "extracting_text"
	StatusBuildingRAG    = "building_rag"
	StatusProcessing     = "processing"
	StatusIndexed        = "indexed"
	StatusError          = "error"
)

// 需求类型
const (
	ReqTypeFunctional    = "functional"
	ReqTypeNonFunctional = "non_functional"
	ReqTypeConstraint    = "constraint"
	ReqTypeUnknown       = "unknown"
)

// Chunk 类型
const (
	ChunkTypeParagraph = "paragraph"
	ChunkTypeListItem  = "list_item"
	ChunkTypeHeader    = "header"
	ChunkTypeFixed     = "fixed"
)

// Document 文档节点
type Document struct {
	DocId       string       `gorm:"column:doc_id;type:varchar(64);primaryKey"`
	Filename    string       `gorm:"column:filename;type:varchar(255);not null"`
	Status      string       `gorm:"column:status;type:varchar(20);not null;index:idx_doc_status"`
	Error       string       `gorm:"column:error;type:text"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null"`
	ProcessedAt sql.NullTime `gorm:"column:processed_at"`
}

func (Document) TableName() string { return "rg_document" }

// Chunk 文本块节点，embedding 以 JSON 序列化存储
type Chunk struct {
	ChunkId    string    `gorm:"column:chunk_id;type:varchar(96);primaryKey"`
	DocId      string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_chunk_doc"`
	ChunkIndex int       `gorm:"column:chunk_index;type:int;not null"`
	ChunkType  string    `gorm:"column:chunk_type;type:varchar(20);not null"`
	Text       string    `gorm:"column:text;type:text;not null"`
	StartPos   int       `gorm:"column:start_pos;type:int;not null"`
	EndPos     int       `gorm:"column:end_pos;type:int;not null"`
	Embedding  []float32 `gorm:"column:embedding;type:text;serializer:json"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Chunk) TableName() string { return "rg_chunk" }

// Requirement 需求节点
type Requirement struct {
	ReqId       string    `gorm:"column:req_id;type:varchar(96);primaryKey"`
	DocId       string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_req_doc"`
	ReqType     string    `gorm:"column:req_type;type:varchar(20);not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	Language    string    `gorm:"column:language;type:varchar(8);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Requirement) TableName() string { return "rg_requirement" }

// Actor 执行者节点
type Actor struct {
	ActorId     string    `gorm:"column:actor_id;type:varchar(96);primaryKey"`
	DocId       string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_actor_doc"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Actor) TableName() string { return "rg_actor" }

// Action 动作节点
type Action struct {
	ActionId    string    `gorm:"column:action_id;type:varchar(96);primaryKey"`
	DocId       string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_action_doc"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Action) TableName() string { return "rg_action" }

// Object 客体节点
type Object struct {
	ObjectId    string    `gorm:"column:object_id;type:varchar(96);primaryKey"`
	DocId       string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_object_doc"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Object) TableName() string { return "rg_object" }

// Result 预期结果节点
type Result struct {
	ResultId    string    `gorm:"column:result_id;type:varchar(96);primaryKey"`
	DocId       string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_result_doc"`
	Description string    `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Result) TableName() string { return "rg_result" }

// Entity 命名实体节点
type Entity struct {
	EntityId   string    `gorm:"column:entity_id;type:varchar(96);primaryKey"`
	DocId      string    `gorm:"column:doc_id;type:varchar(64);not null;index:idx_entity_doc"`
	EntityType string    `gorm:"column:entity_type;type:varchar(30);not null"`
	Name       string    `gorm:"column:name;type:varchar(255);not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Entity) TableName() string { return "rg_entity" }

// Contains Document -> Chunk
type Contains struct {
	Id      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	DocId   string `gorm:"column:doc_id;type:varchar(64);not null;uniqueIndex:uniq_contains"`
	ChunkId string `gorm:"column:chunk_id;type:varchar(96);not null;uniqueIndex:uniq_contains"`
}

func (Contains) TableName() string { return "rg_contains" }

// DescribedBy Requirement -> Chunk，需求描述出现在该 chunk 文本中
type DescribedBy struct {
	Id      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId   string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_described_by"`
	ChunkId string `gorm:"column:chunk_id;type:varchar(96);not null;uniqueIndex:uniq_described_by"`
}

func (DescribedBy) TableName() string { return "rg_described_by" }

// References Requirement -> Document，需求指回其来源文档
type References struct {
	Id    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_references"`
	DocId string `gorm:"column:doc_id;type:varchar(64);not null;uniqueIndex:uniq_references"`
}

func (References) TableName() string { return "rg_references" }

// Implements Requirement -> Entity，需求描述中提到的实体
type Implements struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId    string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_implements"`
	EntityId string `gorm:"column:entity_id;type:varchar(96);not null;uniqueIndex:uniq_implements"`
}

func (Implements) TableName() string { return "rg_implements" }

// Mentions Chunk -> Entity，chunk 文本中出现的实体
type Mentions struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ChunkId  string `gorm:"column:chunk_id;type:varchar(96);not null;uniqueIndex:uniq_mentions"`
	EntityId string `gorm:"column:entity_id;type:varchar(96);not null;uniqueIndex:uniq_mentions"`
}

func (Mentions) TableName() string { return "rg_mentions" }

// Performs Requirement -> Actor
type Performs struct {
	Id      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId   string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_performs"`
	ActorId string `gorm:"column:actor_id;type:varchar(96);not null;uniqueIndex:uniq_performs"`
}

func (Performs) TableName() string { return "rg_performs" }

// Commits Requirement -> Action
type Commits struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId    string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_commits"`
	ActionId string `gorm:"column:action_id;type:varchar(96);not null;uniqueIndex:uniq_commits"`
}

func (Commits) TableName() string { return "rg_commits" }

// OnWhatPerformed Requirement -> Object
type OnWhatPerformed struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId    string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_on_what"`
	ObjectId string `gorm:"column:object_id;type:varchar(96);not null;uniqueIndex:uniq_on_what"`
}

func (OnWhatPerformed) TableName() string { return "rg_on_what_performed" }

// Expects Requirement -> Result
type Expects struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ReqId    string `gorm:"column:req_id;type:varchar(96);not null;uniqueIndex:uniq_expects"`
	ResultId string `gorm:"column:result_id;type:varchar(96);not null;uniqueIndex:uniq_expects"`
}

func (Expects) TableName() string { return "rg_expects" }
