// Package zkteco implements the TCP wire protocol spoken by ZKTeco
// time-attendance terminals, exposing it through the terminal.Dialer
// capability. Only the read-side surface the sync engine needs is
// implemented: connect/auth, attendance log download and user table
// download.
package zkteco

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	cmdConnect       = 1000
	cmdExit          = 1001
	cmdEnableDevice  = 1002
	cmdDisableDevice = 1003
	cmdAuth          = 1102

	cmdPrepareData = 1500
	cmdData        = 1501
	cmdFreeData    = 1502
	cmdDataWRRQ    = 1503
	cmdDataRdy     = 1504

	cmdAckOK     = 2000
	cmdAckError  = 2001
	cmdAckData   = 2002
	cmdAckUnauth = 2005

	cmdAttLogRRQ = 13
	cmdUsersRRQ  = 9

	fctUser = 5
)

// Every TCP packet starts with this magic followed by a u32 payload length.
var tcpMagic = [4]byte{0x50, 0x50, 0x82, 0x7d}

const (
	tcpHeaderSize    = 8
	packetHeaderSize = 8
	maxChunkSize     = 0xffc0
)

// packet is one decoded protocol payload: the 8-byte command header plus
// command-specific data.
type packet struct {
	command uint16
	session uint16
	reply   uint16
	data    []byte
}

// checksum is the ones-complement sum of the payload taken as little-endian
// 16-bit words, with the checksum field itself zeroed.
func checksum(buf []byte) uint16 {
	var sum uint32
	for len(buf) > 1 {
		sum += uint32(binary.LittleEndian.Uint16(buf))
		buf = buf[2:]
	}
	if len(buf) == 1 {
		sum += uint32(buf[0])
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum) & 0xffff
}

// encodePacket frames a command into a full TCP packet ready to write.
func encodePacket(command, session, reply uint16, data []byte) []byte {
	payload := make([]byte, packetHeaderSize+len(data))
	binary.LittleEndian.PutUint16(payload[0:2], command)
	binary.LittleEndian.PutUint16(payload[4:6], session)
	binary.LittleEndian.PutUint16(payload[6:8], reply)
	copy(payload[packetHeaderSize:], data)
	binary.LittleEndian.PutUint16(payload[2:4], checksum(payload))

	buf := make([]byte, tcpHeaderSize+len(payload))
	copy(buf[0:4], tcpMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[tcpHeaderSize:], payload)
	return buf
}

// decodePacket parses a payload that has already been stripped of its TCP
// header.
func decodePacket(payload []byte) (*packet, error) {
	if len(payload) < packetHeaderSize {
		return nil, fmt.Errorf("short packet: %d bytes", len(payload))
	}
	return &packet{
		command: binary.LittleEndian.Uint16(payload[0:2]),
		session: binary.LittleEndian.Uint16(payload[4:6]),
		reply:   binary.LittleEndian.Uint16(payload[6:8]),
		data:    payload[packetHeaderSize:],
	}, nil
}

// commKey derives the 4-byte authentication key sent with cmdAuth from the
// device comm password and the session id handed out by cmdConnect.
func commKey(password uint32, session uint16) []byte {
	var k uint32
	for i := 0; i < 32; i++ {
		k <<= 1
		if password&(1<<uint(i)) != 0 {
			k |= 1
		}
	}
	k += uint32(session)

	b := []byte{byte(k), byte(k >> 8), byte(k >> 16), byte(k >> 24)}
	b[0] ^= 'Z'
	b[1] ^= 'K'
	b[2] ^= 'S'
	b[3] ^= 'O'
	b[0], b[1], b[2], b[3] = b[2], b[3], b[0], b[1]

	const ticks = 50
	b[0] ^= ticks
	b[1] ^= ticks
	b[2] = ticks
	b[3] ^= ticks
	return b
}

// decodeTime unpacks the terminal's packed timestamp. The result is naive
// device-local wall-clock time carried in UTC, per the terminal.RawPunch
// contract.
func decodeTime(packed uint32) time.Time {
	t := packed
	second := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12) + 1
	t /= 12
	year := int(t) + 2000
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

// encodeTime is the inverse of decodeTime.
func encodeTime(t time.Time) uint32 {
	days := uint32(t.Year()-2000)*12*31 + uint32(t.Month()-1)*31 + uint32(t.Day()-1)
	return days*86400 + uint32(t.Hour())*3600 + uint32(t.Minute())*60 + uint32(t.Second())
}
