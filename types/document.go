package types

// DocumentChunk is one windowed slice of an uploaded document.
type DocumentChunk struct {
	Content  string           // The actual text content
	Page     int              // Page number where the chunk is from
	Offset   int              // Byte offset of the chunk within its page text
	Metadata DocumentMetadata // Associated metadata for the chunk
}

// DocumentMetadata contains metadata information for document chunks
type DocumentMetadata struct {
	Title      string // Title of the document
	Source     string // Source file path
	PageNum    int    // Current page number
	TotalPages int    // Total number of pages in the document
}

// DocumentServiceConfig contains configuration options for document processing
type DocumentServiceConfig struct {
	MaxChunkSize int // Maximum size for text chunks
	OverlapSize  int // Size of overlap between chunks
}

type UploadRequest struct {
	Title  string   `json:"title"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// Document represents a stored knowledge base chunk
type Document struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Metadata  Metadata `json:"metadata"`
	CreatedAt int64    `json:"created_at"`
}

// Metadata contains additional document information
type Metadata struct {
	Title  string            `json:"title"`
	Source string            `json:"source"`
	Tags   []string          `json:"tags"`
	Custom map[string]string `json:"custom"`
}
