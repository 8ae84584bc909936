package registry

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

var roomCodeRe = regexp.MustCompile(`^\d{5}$`)

// validRoomCode reports whether s is a well-formed 5-digit room code.
func validRoomCode(s string) bool {
	return roomCodeRe.MatchString(s)
}

// generateCodeLocked returns a fresh 5-digit code not held by any occupied
// room. Emptied rooms are deleted eagerly, so absence from the room table
// is sufficient.
func (r *Registry) generateCodeLocked() string {
	for {
		code := randomRoomCode()
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
}

// randomRoomCode picks a code in [10000, 99999].
func randomRoomCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(90000))
	v := 10000 + n.Int64()
	digits := []byte{
		byte('0' + v/10000%10),
		byte('0' + v/1000%10),
		byte('0' + v/100%10),
		byte('0' + v/10%10),
		byte('0' + v%10),
	}
	return string(digits)
}
