package platform

// ContentItem is one crawled post/note/video in platform-neutral form. Raw
// carries the platform payload untouched; the typed fields are the subset the
// orchestration core itself needs.
type ContentItem struct {
	ID           string
	Title        string
	AuthorID     string
	CommentCount int
	Raw          map[string]interface{}
}

// Creator is a platform account whose content list can be walked.
type Creator struct {
	ID       string
	Nickname string
	Raw      map[string]interface{}
}

// CommentNode is one comment in a reply tree. A root comment has an empty
// ParentID. SubCursor advances as the node's own reply pages are walked; it
// is the only field mutated after creation.
type CommentNode struct {
	ID              string
	ParentID        string
	ItemID          string
	SubCommentCount int
	SubCursor       string
	Raw             map[string]interface{}
}

// IsRoot reports whether the node is a top-level comment.
func (n *CommentNode) IsRoot() bool {
	return n.ParentID == ""
}

// SearchPage is one page of search results. Absence of further pages is data,
// not an error: HasMore false ends the keyword's walk.
type SearchPage struct {
	Items   []ContentItem
	HasMore bool
	// SearchID is an opaque pagination token some platforms thread through
	// consecutive search pages; echo it back on the next request.
	SearchID string
}

// ContentPage is one page of a creator's content list.
type ContentPage struct {
	Items   []ContentItem
	Cursor  string
	HasMore bool
}

// CommentPage is one page of a comment cursor-walk, root or sub level.
type CommentPage struct {
	Comments []CommentNode
	Cursor   string
	HasMore  bool
}

// Record is one unit handed to the persistence sink.
type Record struct {
	Platform string                 `json:"platform"`
	Kind     RecordKind             `json:"kind"`
	ID       string                 `json:"id"`
	Data     map[string]interface{} `json:"data"`
}

// RecordKind tags what a Record carries.
type RecordKind string

const (
	RecordKindContent RecordKind = "content"
	RecordKindComment RecordKind = "comment"
	RecordKindCreator RecordKind = "creator"
)
