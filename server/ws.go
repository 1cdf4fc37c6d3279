package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soyart/explorer-web/prefs"
)

const writeWait = 10 * time.Second

// handlePreferencesWS streams a preferences snapshot on connect and after
// every change. Only the latest pending snapshot is kept for slow readers.
func (s *Server) handlePreferencesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("error establishing preferences connection", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}
	defer conn.Close()

	updates := make(chan prefs.Snapshot, 1)
	push := func() {
		snapshot := s.prefs.Snapshot()
		for {
			select {
			case updates <- snapshot:
				return
			default:
			}

			// drop the stale snapshot
			select {
			case <-updates:
			default:
			}
		}
	}

	unsubscribeAddress := s.prefs.NodeAddress.Subscribe(func(string) { push() })
	defer unsubscribeAddress()

	unsubscribeCount := s.prefs.NumberOfBlocks.Subscribe(func(int) { push() })
	defer unsubscribeCount()

	// Incoming messages are ignored; the read loop only detects a closed peer.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("preferences subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		select {
		case snapshot := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshot); err != nil {
				s.logger.Info("closed preferences connection", zap.Error(err))
				return
			}

		case <-closed:
			s.logger.Info("preferences subscriber left", zap.String("remote_addr", r.RemoteAddr))
			return
		}
	}
}
