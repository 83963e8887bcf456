package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/storage/journal"
)

const journalPollInterval = 2 * time.Second

type rateFeed interface {
	Latest(metal entity.Metal) (entity.Rate, bool)
	Subscribe(metal entity.Metal) chan entity.Rate
	Unsubscribe(metal entity.Metal, ch chan entity.Rate)
}

type tradeReader interface {
	EventsAfter(index uint64) ([]journal.Record, error)
}

type balanceReader interface {
	Balance(ctx context.Context) (entity.WalletSnapshot, error)
}

type ratePayload struct {
	Metal string    `json:"metal"`
	Buy   string    `json:"buy"`
	Sell  string    `json:"sell"`
	AsOf  time.Time `json:"as_of"`
}

// Server exposes HTTP endpoints serving the HTML UI, SSE streams for rates
// and trades, and a websocket rate push.
type Server struct {
	Addr    string
	Feed    rateFeed
	Metals  []entity.Metal
	Journal tradeReader
	Ledger  balanceReader

	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new web server instance.
func NewServer(addr string, feed rateFeed, metals []entity.Metal, trades tradeReader, ledger balanceReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:    addr,
		Feed:    feed,
		Metals:  metals,
		Journal: trades,
		Ledger:  ledger,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/rates", s.handleRates)
	mux.HandleFunc("/rates/stream", s.handleRateStream)
	mux.HandleFunc("/rates/ws", s.handleRateWS)
	mux.HandleFunc("/trades/stream", s.handleTradeStream)
	mux.HandleFunc("/wallet", s.handleWallet)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) snapshotPayloads() []ratePayload {
	payloads := make([]ratePayload, 0, len(s.Metals))
	for _, metal := range s.Metals {
		rate, ok := s.Feed.Latest(metal)
		if !ok {
			continue
		}
		payloads = append(payloads, ratePayload{
			Metal: metal.String(),
			Buy:   rate.Buy.String(),
			Sell:  rate.Sell.String(),
			AsOf:  rate.AsOf,
		})
	}
	return payloads
}

// handleRates returns the latest known rates as a one-shot JSON snapshot.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshotPayloads()); err != nil {
		s.logger.Warn("rates snapshot encode failed", zap.Error(err))
	}
}

// handleWallet returns the current wallet snapshot: confirmed cash, metal
// grams and the pending settlement total.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "wallet not available")
		return
	}
	snapshot, err := s.Ledger.Balance(r.Context())
	if err != nil {
		http.Error(w, "failed to load wallet", http.StatusInternalServerError)
		s.logger.Warn("wallet snapshot failed", zap.Error(err))
		return
	}

	metals := make(map[string]string, len(snapshot.Confirmed.MetalGrams))
	for metal, grams := range snapshot.Confirmed.MetalGrams {
		metals[metal.String()] = grams.String()
	}
	payload := struct {
		Cash        string            `json:"cash"`
		Metals      map[string]string `json:"metals"`
		PendingCash string            `json:"pending_cash"`
	}{
		Cash:        snapshot.Confirmed.Cash.String(),
		Metals:      metals,
		PendingCash: snapshot.PendingCash.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("wallet encode failed", zap.Error(err))
	}
}

// handleRateStream streams rate updates over SSE. The client receives the
// current snapshot immediately, then every change as it lands.
func (s *Server) handleRateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(payload ratePayload) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: rate\n")
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for _, payload := range s.snapshotPayloads() {
		send(payload)
	}

	// one subscription per metal, multiplexed onto this response
	type update struct {
		metal entity.Metal
		rate  entity.Rate
	}
	updates := make(chan update, 64)
	for _, metal := range s.Metals {
		m := metal
		ch := s.Feed.Subscribe(m)
		defer s.Feed.Unsubscribe(m, ch)
		go func() {
			for rate := range ch {
				select {
				case updates <- update{metal: m, rate: rate}:
				case <-r.Context().Done():
					return
				}
			}
		}()
	}

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case u := <-updates:
			send(ratePayload{
				Metal: u.metal.String(),
				Buy:   u.rate.Buy.String(),
				Sell:  u.rate.Sell.String(),
				AsOf:  u.rate.AsOf,
			})
		}
	}
}

// handleRateWS pushes rate updates over a websocket for clients that keep a
// long-lived connection instead of SSE.
func (s *Server) handleRateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// drain client frames so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, payload := range s.snapshotPayloads() {
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}

	type update struct {
		metal entity.Metal
		rate  entity.Rate
	}
	updates := make(chan update, 64)
	for _, metal := range s.Metals {
		m := metal
		ch := s.Feed.Subscribe(m)
		defer s.Feed.Unsubscribe(m, ch)
		go func() {
			for rate := range ch {
				select {
				case updates <- update{metal: m, rate: rate}:
				case <-r.Context().Done():
					return
				}
			}
		}()
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case u := <-updates:
			payload := ratePayload{
				Metal: u.metal.String(),
				Buy:   u.rate.Buy.String(),
				Sell:  u.rate.Sell.String(),
				AsOf:  u.rate.AsOf,
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}
}

// handleTradeStream streams journaled trades over SSE, oldest first, then
// polls the journal for new entries.
func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trade journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendTrades := func() error {
		records, err := s.Journal.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Trade)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: trade\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendTrades(); err != nil {
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		s.logger.Warn("trade stream initial load failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendTrades(); err != nil {
				s.logger.Warn("trade stream poll failed", zap.Error(err))
			}
		}
	}
}

// Live rate board with the trade journal alongside.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Goldengine</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --gold:#b8860b;
      --silver:#6e7b8b;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(1100px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 360px;
      gap:2rem;
    }
    header { display:flex; justify-content:space-between; align-items:flex-start; gap:1rem; grid-column:1 / -1; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.55rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#ffffff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .rate-card {
      border:3px solid var(--ink);
      padding:1.5rem;
      background:#fff;
      box-shadow:8px 8px 0 rgba(0,0,0,.15);
      margin-bottom:1.5rem;
    }
    .rate-card h2 {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.75rem;
      letter-spacing:.08em;
      margin:0 0 1rem 0;
      text-transform:uppercase;
    }
    .rate-card.gold h2 { color:var(--gold); }
    .rate-card.silver h2 { color:var(--silver); }
    .rate-row { display:flex; justify-content:space-between; margin:.4rem 0; font-size:.85rem; }
    .rate-row .label { color:var(--ink-mid); text-transform:uppercase; font-size:.6rem; letter-spacing:.15em; align-self:center; }
    .rate-row .value { font-weight:700; }
    .stamp { font-size:.55rem; color:var(--ink-soft); margin-top:.8rem; }
    .trades { display:flex; flex-direction:column; gap:.8rem; max-height:70vh; overflow-y:auto; }
    .trade-card {
      border:2px solid var(--ink);
      padding:.8rem;
      background:#fff;
      box-shadow:4px 4px 0 rgba(0,0,0,.12);
      font-size:.65rem;
      line-height:1.5;
    }
    .trade-action { font-weight:700; text-transform:uppercase; letter-spacing:.1em; }
    .trade-action.buy { color:#1b9aaa; }
    .trade-action.sell { color:#d7263d; }
    .trade-status { font-size:.55rem; color:var(--ink-mid); }
    .sidebar-title {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.15em;
      margin-bottom:1rem;
      padding-bottom:.8rem;
      border-bottom:2px solid var(--ink);
    }
    @media (max-width:720px) {
      #app { grid-template-columns:1fr; }
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">goldengine rates</p>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <section id="rates"></section>
    <aside>
      <h3 class="sidebar-title">Trades</h3>
      <div id="trades" class="trades"></div>
    </aside>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const ratesEl = document.getElementById('rates');
const tradesEl = document.getElementById('trades');
const rateCards = new Map();
const MAX_TRADES = 50;

function formatTime(ts){
  if(!ts) return '';
  const date = new Date(ts);
  if(Number.isNaN(date.getTime())) return '';
  return date.toLocaleTimeString([], { hour12:false });
}

function ensureRateCard(metal){
  if(rateCards.has(metal)){
    return rateCards.get(metal);
  }
  const card = document.createElement('article');
  card.className = 'rate-card ' + metal;
  const title = document.createElement('h2');
  title.textContent = metal;
  const buyRow = document.createElement('div');
  buyRow.className = 'rate-row';
  buyRow.innerHTML = '<span class="label">Buy / g</span><span class="value buy">—</span>';
  const sellRow = document.createElement('div');
  sellRow.className = 'rate-row';
  sellRow.innerHTML = '<span class="label">Sell / g</span><span class="value sell">—</span>';
  const stamp = document.createElement('div');
  stamp.className = 'stamp';
  card.append(title, buyRow, sellRow, stamp);
  ratesEl.appendChild(card);
  const view = {
    buyEl: buyRow.querySelector('.buy'),
    sellEl: sellRow.querySelector('.sell'),
    stampEl: stamp
  };
  rateCards.set(metal, view);
  return view;
}

function handleRate(payload){
  const view = ensureRateCard(payload.metal);
  view.buyEl.textContent = '₹' + parseFloat(payload.buy).toFixed(2);
  view.sellEl.textContent = '₹' + parseFloat(payload.sell).toFixed(2);
  view.stampEl.textContent = 'as of ' + formatTime(payload.as_of);
}

function handleTrade(trade){
  const card = document.createElement('div');
  card.className = 'trade-card';
  const action = document.createElement('span');
  action.className = 'trade-action ' + trade.action;
  action.textContent = trade.action + ' ' + trade.metal;
  const detail = document.createElement('div');
  detail.textContent = trade.grams + ' g · ₹' + trade.rupees;
  const status = document.createElement('div');
  status.className = 'trade-status';
  status.textContent = trade.status + ' · ' + formatTime(trade.ts);
  card.append(action, detail, status);
  tradesEl.insertBefore(card, tradesEl.firstChild);
  while(tradesEl.children.length > MAX_TRADES){
    tradesEl.removeChild(tradesEl.lastChild);
  }
}

function connectRates(){
  const source = new EventSource('/rates/stream');
  statusEl.textContent = 'Live';
  source.addEventListener('rate', (event) => {
    try{
      handleRate(JSON.parse(event.data));
    }catch(err){
      console.error('rate parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectRates, 2000);
  });
}

function connectTrades(){
  const source = new EventSource('/trades/stream');
  source.addEventListener('trade', (event) => {
    try{
      handleTrade(JSON.parse(event.data));
    }catch(err){
      console.error('trade parse', err);
    }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectTrades, 2000);
  });
}

connectRates();
connectTrades();
</script>
</body>
</html>`
