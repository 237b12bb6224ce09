package rooms

import "github.com/hilthontt/huddle/internal/domain"

type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	RoomID string       `json:"roomId"`
	Room   *domain.Room `json:"room"`
}

type roomResponse struct {
	Room *domain.Room `json:"room"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}
