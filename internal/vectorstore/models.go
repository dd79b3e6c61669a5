package vectorstore

// DenseFieldName and SparseFieldName are the fixed named-vector fields
// every KB collection carries.
const (
	DenseFieldName  = "dense"
	SparseFieldName = "bm25"
)

// TypeField and its values tag what kind of point a payload describes,
// distinguishing a collection's own descriptor point from the document
// chunks stored alongside it.
const (
	TypeField             = "_type"
	TypeCollectionMetadata = "collection_metadata"
	TypeDocument           = "document"
)
