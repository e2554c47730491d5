package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playmatatu/poolphys/internal/game"
	"github.com/redis/go-redis/v9"
)

var rdbClient *redis.Client

func SetRedisClient(r *redis.Client) {
	rdbClient = r
}

// StartShotEventSubscriber relays shots published by any instance to the
// viewers connected to h.
func StartShotEventSubscriber(ctx context.Context, h *Hub) {
	if rdbClient == nil {
		log.Println("[WS] Redis client not set; shot event subscriber not started")
		return
	}

	pubsub := rdbClient.Subscribe(ctx, game.ShotEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", game.ShotEventsChannel)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[WS] %s subscriber stopped", game.ShotEventsChannel)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				relayShotEvent(h, msg.Payload)
			}
		}
	}()
}

func relayShotEvent(h *Hub, payload string) {
	var event game.ShotEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("[WS] invalid shot event payload: %v", err)
		return
	}
	if event.TableID == "" || event.Result == nil {
		log.Printf("[WS] shot event missing table or result")
		return
	}

	if h.RoomSize(event.TableID) == 0 {
		return
	}
	log.Printf("[WS] relaying shot %d for table %s", event.Result.ShotNumber, event.TableID)
	h.BroadcastShot(event.TableID, event.Result)
}
