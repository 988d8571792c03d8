// cmd/client is a small CLI for talking to the gateway: place/cancel
// orders, query BBO/depth and subscribe to market-data pushes. Preserves
// the teacher's flag-based action CLI (cmd/client/client.go: -action
// place/cancel/log) over the new JSON wire schema in place of the fixed-
// width binary frames.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"fenrir/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the gateway")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'bbo', 'depth', 'subscribe']")

	symbol := flag.String("symbol", "BTC-USDT", "Trading symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'ioc' or 'fok'")
	price := flag.String("price", "", "Limit price (required for limit, optional for ioc)")
	qtyStr := flag.String("qty", "10", "Quantity, or comma-separated list (e.g. 10,20,50)")
	owner := flag.String("owner", "", "Opaque user id echoed back on fills")
	clientOrderID := flag.String("client-order-id", "", "Client-assigned order id, echoed back in responses")

	orderID := flag.String("order-id", "", "Order id to cancel")
	depth := flag.Int("depth-levels", 10, "Number of price levels to request for 'depth'")
	subTrades := flag.Bool("trades", true, "Subscribe to the trade stream")
	subMarketData := flag.Bool("market-data", true, "Subscribe to the market-data stream")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readResponses(conn)

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			req := wire.NewOrderRequest{
				Type:          wire.TypeOrder,
				ClientOrderID: *clientOrderID,
				Symbol:        *symbol,
				Side:          strings.ToLower(*sideStr),
				OrderType:     strings.ToLower(*typeStr),
				Price:         *price,
				Quantity:      qty,
				UserID:        *owner,
			}
			if err := send(conn, req); err != nil {
				log.Printf("failed to send order (qty %s): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %s order: %s %s @ %s\n", strings.ToUpper(*sideStr), strings.ToUpper(*typeStr), *symbol, qty, *price)
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *orderID == "" {
			log.Fatal("-order-id is required for cancel")
		}
		if err := send(conn, wire.CancelRequest{Type: wire.TypeCancel, Symbol: *symbol, OrderID: *orderID}); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for order %s\n", *orderID)
		}

	case "bbo":
		if err := send(conn, wire.QueryRequest{Type: wire.TypeGetBBO, Symbol: *symbol}); err != nil {
			log.Printf("failed to send bbo query: %v", err)
		}

	case "depth":
		if err := send(conn, wire.QueryRequest{Type: wire.TypeGetOrderbook, Symbol: *symbol, Depth: *depth}); err != nil {
			log.Printf("failed to send depth query: %v", err)
		}

	case "subscribe":
		req := wire.SubscribeRequest{Type: wire.TypeSubscribe, Symbols: []string{*symbol}, Trades: *subTrades, MarketData: *subMarketData}
		if err := send(conn, req); err != nil {
			log.Printf("failed to subscribe: %v", err)
		} else {
			fmt.Printf("-> subscribed to %s (trades=%v market_data=%v)\n", *symbol, *subTrades, *subMarketData)
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for responses... (press ctrl+c to exit)")
	select {}
}

func parseQuantities(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := strconv.ParseFloat(p, 64); err != nil {
			log.Printf("warning: invalid quantity %q, skipping", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// send marshals a flat, already "type"-tagged wire request and writes it
// as one newline-delimited line.
func send(conn net.Conn, req interface{}) error {
	encoded, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(encoded, '\n'))
	return err
}

// readResponses prints every response/push line from the gateway as
// raw, pretty-ish JSON -- there's no fixed response shape to parse
// client-side since order_response, bbo, depth and market_data all
// share the connection.
func readResponses(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		var pretty map[string]interface{}
		line := scanner.Bytes()
		if err := json.Unmarshal(line, &pretty); err != nil {
			fmt.Printf("[raw] %s\n", line)
			continue
		}
		encoded, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n%s\n", encoded)
	}
	fmt.Println("connection closed")
	os.Exit(0)
}
