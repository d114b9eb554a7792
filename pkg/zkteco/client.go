package zkteco

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

// Dialer opens ZKTeco protocol sessions. It implements terminal.Dialer.
type Dialer struct {
	logger *zap.Logger
}

func NewDialer(logger *zap.Logger) *Dialer {
	return &Dialer{logger: logger}
}

// Dial connects to a terminal, performs the connect handshake and, when
// the device demands it, comm-key authentication.
func (d *Dialer) Dial(ctx context.Context, cfg terminal.DialConfig) (terminal.Session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	nd := net.Dialer{Timeout: cfg.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	s := &session{
		conn:    conn,
		timeout: cfg.Timeout,
		logger:  d.logger.With(zap.String("terminal", addr)),
	}

	resp, err := s.command(cmdConnect, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect handshake: %w", err)
	}
	s.sessionID = resp.session

	if resp.command == cmdAckUnauth {
		if cfg.Password == "" {
			conn.Close()
			return nil, fmt.Errorf("terminal %s requires a comm password", addr)
		}
		pw, err := strconv.ParseUint(cfg.Password, 10, 32)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("comm password must be numeric: %w", err)
		}
		auth, err := s.command(cmdAuth, commKey(uint32(pw), s.sessionID))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("auth: %w", err)
		}
		if auth.command != cmdAckOK {
			conn.Close()
			return nil, fmt.Errorf("terminal %s rejected comm password", addr)
		}
	} else if resp.command != cmdAckOK {
		conn.Close()
		return nil, fmt.Errorf("connect refused: command %d", resp.command)
	}

	s.logger.Debug("Terminal session established", zap.Uint16("session_id", s.sessionID))
	return s, nil
}

type session struct {
	conn      net.Conn
	timeout   time.Duration
	sessionID uint16
	replyID   uint16
	logger    *zap.Logger
}

// Punches downloads the full attendance log. The device is disabled for
// the duration of the transfer so punches landing mid-download are queued
// rather than interleaved, then re-enabled.
func (s *session) Punches(ctx context.Context) ([]terminal.RawPunch, error) {
	if _, err := s.command(cmdDisableDevice, nil); err != nil {
		return nil, fmt.Errorf("disable device: %w", err)
	}
	defer func() {
		if _, err := s.command(cmdEnableDevice, nil); err != nil {
			s.logger.Warn("Failed to re-enable terminal", zap.Error(err))
		}
	}()

	data, err := s.readWithBuffer(ctx, cmdAttLogRRQ, 0)
	if err != nil {
		return nil, fmt.Errorf("download attendance: %w", err)
	}
	return parseAttendance(data)
}

// Users downloads the enrolled-user table.
func (s *session) Users(ctx context.Context) ([]terminal.User, error) {
	data, err := s.readWithBuffer(ctx, cmdUsersRRQ, fctUser)
	if err != nil {
		return nil, fmt.Errorf("download users: %w", err)
	}
	return parseUsers(data)
}

func (s *session) Disconnect() error {
	if _, err := s.command(cmdExit, nil); err != nil {
		s.conn.Close()
		return fmt.Errorf("exit: %w", err)
	}
	return s.conn.Close()
}

// command sends one request and reads one reply.
func (s *session) command(cmd uint16, data []byte) (*packet, error) {
	s.replyID++
	if err := s.send(cmd, data); err != nil {
		return nil, err
	}
	return s.recv()
}

func (s *session) send(cmd uint16, data []byte) error {
	if s.timeout > 0 {
		s.conn.SetDeadline(time.Now().Add(s.timeout))
	}
	_, err := s.conn.Write(encodePacket(cmd, s.sessionID, s.replyID, data))
	return err
}

func (s *session) recv() (*packet, error) {
	var hdr [tcpHeaderSize]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, err
	}
	if [4]byte(hdr[0:4]) != tcpMagic {
		return nil, fmt.Errorf("bad frame magic % x", hdr[0:4])
	}
	size := binary.LittleEndian.Uint32(hdr[4:8])

	payload := make([]byte, size)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return nil, err
	}
	return decodePacket(payload)
}

// readWithBuffer performs a buffered bulk read. Small tables come back in a
// single data reply; large ones are announced with a total size and paged
// out in chunks the client requests one at a time.
func (s *session) readWithBuffer(ctx context.Context, cmd uint16, fct int32) ([]byte, error) {
	req := make([]byte, 11)
	req[0] = 1
	binary.LittleEndian.PutUint16(req[1:3], cmd)
	binary.LittleEndian.PutUint32(req[3:7], uint32(fct))

	resp, err := s.command(cmdDataWRRQ, req)
	if err != nil {
		return nil, err
	}

	switch resp.command {
	case cmdData:
		return resp.data, nil
	case cmdAckOK:
		if len(resp.data) < 5 {
			return nil, fmt.Errorf("buffered read announcement too short: %d bytes", len(resp.data))
		}
		total := binary.LittleEndian.Uint32(resp.data[1:5])
		return s.readChunks(ctx, total)
	default:
		return nil, fmt.Errorf("unexpected reply %d to bulk read", resp.command)
	}
}

func (s *session) readChunks(ctx context.Context, total uint32) ([]byte, error) {
	out := make([]byte, 0, total)

	for offset := uint32(0); offset < total; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		want := total - offset
		if want > maxChunkSize {
			want = maxChunkSize
		}

		req := make([]byte, 8)
		binary.LittleEndian.PutUint32(req[0:4], offset)
		binary.LittleEndian.PutUint32(req[4:8], want)
		if err := s.send(cmdDataRdy, req); err != nil {
			return nil, err
		}

		var got uint32
		for got < want {
			pkt, err := s.recv()
			if err != nil {
				return nil, err
			}
			switch pkt.command {
			case cmdPrepareData:
				// announces the chunk size, no payload to keep
			case cmdData:
				out = append(out, pkt.data...)
				got += uint32(len(pkt.data))
			case cmdAckOK:
				// some firmware acks after the final data packet
			default:
				return nil, fmt.Errorf("unexpected reply %d during chunked read", pkt.command)
			}
		}
		offset += got
	}

	if _, err := s.command(cmdFreeData, nil); err != nil {
		return nil, fmt.Errorf("free data buffer: %w", err)
	}
	if uint32(len(out)) != total {
		return nil, fmt.Errorf("chunked read returned %d of %d bytes", len(out), total)
	}
	return out, nil
}
