package sessionhandler

type CreateSessionBody struct {
	GameID string `json:"gameId" binding:"required"`
	Name   string `json:"name"   binding:"required"`
} // @name CreateSessionRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
