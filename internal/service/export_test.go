package service

// SetRoomCodeGenerator 替换房间码生成器，用于制造房间码冲突
func SetRoomCodeGenerator(s *RoomService, gen func() (string, error)) {
	s.newCode = gen
}

// RandomRoomCode 暴露默认的房间码生成器
var RandomRoomCode = randomRoomCode
