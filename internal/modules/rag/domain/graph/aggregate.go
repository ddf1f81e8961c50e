package graph

// DocumentGraph 单篇文档构建出的完整子图，一次事务落库
type DocumentGraph struct {
	Document     *Document
	Chunks       []Chunk
	Requirements []Requirement
	Actors       []Actor
	Actions      []Action
	Objects      []Object
	Results      []Result
	Entities     []Entity

	Contains        []Contains
	DescribedBy     []DescribedBy
	References      []References
	Implements      []Implements
	Mentions        []Mentions
	Performs        []Performs
	Commits         []Commits
	OnWhatPerformed []OnWhatPerformed
	Expects         []Expects
}

// RequirementDetail 需求及其关联的 chunk 文本与实体名
type RequirementDetail struct {
	Requirement
	Chunks   []string
	Entities []string
}

// ChunkContext 某个 chunk 关联的图上下文，用于召回结果的富化
type ChunkContext struct {
	Requirements []Requirement
	Actors       []Actor
	Actions      []Action
	Objects      []Object
	Results      []Result
	Entities     []Entity
}
