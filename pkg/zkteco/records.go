package zkteco

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

const (
	attRecordSize     = 40
	attRecordSizeTiny = 8
	userRecordSize    = 72
)

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// parseAttendance decodes a downloaded attendance buffer. Modern firmware
// ships 40-byte records; very old units use an 8-byte layout keyed by the
// numeric enrollment id.
func parseAttendance(data []byte) ([]terminal.RawPunch, error) {
	if len(data) == 0 {
		return nil, nil
	}

	size := attRecordSize
	if len(data)%attRecordSize != 0 {
		if len(data)%attRecordSizeTiny != 0 {
			return nil, fmt.Errorf("attendance buffer of %d bytes matches no known record size", len(data))
		}
		size = attRecordSizeTiny
	}

	punches := make([]terminal.RawPunch, 0, len(data)/size)
	for off := 0; off+size <= len(data); off += size {
		rec := data[off : off+size]
		switch size {
		case attRecordSize:
			// u16 enrollment id, 24-byte user id, status, packed time,
			// punch code, 8 bytes padding.
			userID := cstring(rec[2:26])
			if userID == "" {
				userID = strconv.Itoa(int(binary.LittleEndian.Uint16(rec[0:2])))
			}
			punches = append(punches, terminal.RawPunch{
				UserID:    userID,
				Status:    int(rec[26]),
				Timestamp: decodeTime(binary.LittleEndian.Uint32(rec[27:31])),
				Punch:     int(rec[31]),
			})
		case attRecordSizeTiny:
			punches = append(punches, terminal.RawPunch{
				UserID:    strconv.Itoa(int(binary.LittleEndian.Uint16(rec[0:2]))),
				Status:    int(rec[2]),
				Timestamp: decodeTime(binary.LittleEndian.Uint32(rec[3:7])),
				Punch:     int(rec[7]),
			})
		}
	}
	return punches, nil
}

// parseUsers decodes a downloaded user table. Only the 72-byte layout is
// supported; it is what every unit this service has been pointed at speaks.
func parseUsers(data []byte) ([]terminal.User, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%userRecordSize != 0 {
		return nil, fmt.Errorf("user buffer of %d bytes is not a multiple of %d", len(data), userRecordSize)
	}

	users := make([]terminal.User, 0, len(data)/userRecordSize)
	for off := 0; off+userRecordSize <= len(data); off += userRecordSize {
		rec := data[off : off+userRecordSize]
		// u16 enrollment id, privilege, 8-byte password, 24-byte name,
		// u32 card, pad, 7-byte group, pad, 24-byte user id.
		userID := cstring(rec[48:72])
		if userID == "" {
			userID = strconv.Itoa(int(binary.LittleEndian.Uint16(rec[0:2])))
		}
		users = append(users, terminal.User{
			UserID:    userID,
			Privilege: int(rec[2]),
			Name:      cstring(rec[11:35]),
			GroupID:   cstring(rec[40:47]),
		})
	}
	return users, nil
}
