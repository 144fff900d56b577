package notehandler

type CreateNoteBody struct {
	SessionID int64  `json:"sessionId" binding:"required,gt=0"`
	Title     string `json:"title"     binding:"required"`
	Text      string `json:"text"`
	Shared    bool   `json:"shared"`
} // @name CreateNoteRequest

type UpdateNoteBody struct {
	Title  *string `json:"title"`
	Text   *string `json:"text"`
	Shared *bool   `json:"shared"`
} // @name UpdateNoteRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
