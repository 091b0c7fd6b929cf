package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/newswire/internal/model"
)

const (
	// fallbackPollInterval はWebSocket切断中の再ポーリング間隔。
	fallbackPollInterval = 60 * time.Second
	// reconnectWait はWebSocket再接続までの待機時間。
	reconnectWait = 5 * time.Second
	// requestTimeout はポーリングリクエストの許容時間。
	requestTimeout = 10 * time.Second
)

// LiveConfig はLiveクライアントの設定。
type LiveConfig struct {
	// BaseURL はサーバーのベースURL（例: http://localhost:8080）。
	BaseURL string
	// Sources は購読するソースIDのリスト。空の場合は全ソースを
	// ポーリング対象とし、配信購読は行わない。
	Sources []string
	// MaxItems は表示リストの上限件数。
	MaxItems int
	// PollLimit は1回のポーリングで取得する記事数。
	PollLimit int
	// OnUpdate は表示リストが変化するたびに呼ばれる（省略可）。
	OnUpdate func(items []DisplayItem)
}

// Live はサーバーに接続し、ポーリングとリアルタイム配信を
// Reconcilerへ流し込むクライアント。WebSocketが切断されている間は
// 定期ポーリングにフォールバックし、接続が回復すると配信を再開する。
type Live struct {
	config     LiveConfig
	reconciler *Reconciler
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLive はLiveクライアントを生成する。
func NewLive(config LiveConfig, logger *slog.Logger) *Live {
	return &Live{
		config:     config,
		reconciler: NewReconciler(config.MaxItems),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// Reconciler は内部の突合レイヤーを返す。
func (l *Live) Reconciler() *Reconciler {
	return l.reconciler
}

// Run は初回ポーリングの後、WebSocket配信の受信ループを実行する。
// 切断中は60秒間隔のポーリングで補完し、コンテキストが
// キャンセルされるまで再接続を試み続ける。
func (l *Live) Run(ctx context.Context) error {
	if err := l.pollOnce(ctx); err != nil {
		return fmt.Errorf("初回ポーリングに失敗: %w", err)
	}
	l.notify()

	for {
		if err := l.runSocket(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("WebSocket接続が切断されました。ポーリングに切り替えます",
				slog.String("error", err.Error()),
			)
		}

		// 切断中のフォールバックポーリングと再接続待機
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectWait):
		}

		if err := l.pollOnce(ctx); err != nil {
			l.logger.Warn("フォールバックポーリングに失敗しました",
				slog.String("error", err.Error()),
			)
		} else {
			l.notify()
		}
	}
}

// runSocket はWebSocket接続を確立し、購読フレームを送信して
// 新着記事フレームを受信し続ける。切断時にエラーを返す。
func (l *Live) runSocket(ctx context.Context) error {
	wsURL, err := l.websocketURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: requestTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket接続に失敗: %w", err)
	}
	defer conn.Close()

	for _, source := range l.config.Sources {
		frame := map[string]string{"action": "subscribe", "channel": source}
		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("購読フレームの送信に失敗: %w", err)
		}
	}

	l.logger.Info("リアルタイム配信に接続しました",
		slog.String("url", wsURL),
		slog.Int("sources", len(l.config.Sources)),
	)

	// コンテキストキャンセルで読み取りを中断する
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	// 接続確立とポーリングの間に取りこぼした記事を補完する
	pollTicker := time.NewTicker(fallbackPollInterval)
	defer pollTicker.Stop()

	frames := make(chan serverFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame serverFrame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			// 受信ループ側が終了していても送信で固まらないようにする
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case <-pollTicker.C:
			if err := l.pollOnce(ctx); err != nil {
				l.logger.Warn("定期ポーリングに失敗しました",
					slog.String("error", err.Error()),
				)
				continue
			}
			l.notify()
		case frame := <-frames:
			if frame.Type != "new-item" || frame.Item == nil {
				continue
			}
			l.reconciler.ApplyLive(*frame.Item)
			l.notify()
		}
	}
}

// serverFrame はサーバーから受信するフレーム。
type serverFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Item    *model.FeedItem `json:"item"`
	Message string          `json:"message"`
}

// pollResponse は /api/items のレスポンス。
type pollResponse struct {
	Items []model.FeedItem `json:"items"`
	Count int              `json:"count"`
}

// pollOnce は /api/items を1回ポーリングしてReconcilerへ突合する。
// 複数ソースを購読している場合は全ソース分を1回の呼び出しで取得する。
func (l *Live) pollOnce(ctx context.Context) error {
	endpoint, err := url.JoinPath(l.config.BaseURL, "/api/items")
	if err != nil {
		return fmt.Errorf("URLの構築に失敗: %w", err)
	}

	query := url.Values{}
	if l.config.PollLimit > 0 {
		query.Set("limit", strconv.Itoa(l.config.PollLimit))
	}
	if len(l.config.Sources) == 1 {
		query.Set("source", l.config.Sources[0])
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ポーリングリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ポーリングのHTTPステータスが不正: %d %s", resp.StatusCode, string(body))
	}

	var decoded pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("レスポンスのデコードに失敗: %w", err)
	}

	l.reconciler.ApplyPoll(decoded.Items)
	return nil
}

// websocketURL はベースURLから /ws のWebSocket URLを導出する。
func (l *Live) websocketURL() (string, error) {
	u, err := url.Parse(l.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("ベースURLの解析に失敗: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("未対応のスキームです: %s", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// notify はOnUpdateコールバックへスナップショットを渡す。
func (l *Live) notify() {
	if l.config.OnUpdate != nil {
		l.config.OnUpdate(l.reconciler.Items())
	}
}
