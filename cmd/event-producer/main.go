package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/kafka"
)

var usernamePrefixes = []string{
	"Striker", "Keeper", "Sprinter", "Climber", "Rower", "Spiker", "Dribbler", "Setter", "Pacer", "Diver",
	"Lifter", "Skater", "Surfer", "Racer", "Jumper", "Boxer", "Fencer", "Archer", "Paddler", "Rider",
}

func username(userID int64) string {
	idx := int(userID-1) % len(usernamePrefixes)
	suffix := int(userID-1)/len(usernamePrefixes) + 1
	return fmt.Sprintf("%s%d", usernamePrefixes[idx], suffix)
}

// simulator produces a plausible stream of domain events: users join open
// events, some attend, organizers close events, attendees leave reviews.
type simulator struct {
	users     int64
	nextEvent int64
	open      map[int64]int64   // event -> organizer
	joined    map[int64][]int64 // event -> participants
}

type message struct {
	key     int64
	typ     kafka.EventType
	payload interface{}
}

func (s *simulator) randomUser() int64 {
	return rand.Int63n(s.users) + 1
}

func (s *simulator) createEvent() message {
	s.nextEvent++
	organizer := s.randomUser()
	s.open[s.nextEvent] = organizer
	return message{organizer, kafka.TypeEvent, domain.EventLifecycleEvent{
		EventID:     s.nextEvent,
		OrganizerID: organizer,
		Title:       fmt.Sprintf("Pickup game #%d", s.nextEvent),
		Status:      domain.EventOpen,
		Action:      domain.ActionCreated,
	}}
}

func (s *simulator) anyOpenEvent() (int64, bool) {
	for id := range s.open {
		return id, true
	}
	return 0, false
}

// next picks the following event to publish.
func (s *simulator) next() []message {
	eventID, ok := s.anyOpenEvent()
	if !ok || rand.Intn(100) < 10 {
		return []message{s.createEvent()}
	}

	roll := rand.Intn(100)
	switch {
	case roll < 60:
		user := s.randomUser()
		s.joined[eventID] = append(s.joined[eventID], user)
		return []message{{user, kafka.TypeParticipation, domain.ParticipationEvent{
			UserID:     user,
			EventID:    eventID,
			Status:     domain.ParticipationJoined,
			Action:     domain.ActionCreated,
			OccurredAt: time.Now().UTC(),
		}}}
	case roll < 85 && len(s.joined[eventID]) > 0:
		// close the event: attendees, organizer, a couple of reviews
		organizer := s.open[eventID]
		var out []message
		for _, user := range s.joined[eventID] {
			out = append(out, message{user, kafka.TypeParticipation, domain.ParticipationEvent{
				UserID:     user,
				EventID:    eventID,
				Status:     domain.ParticipationAttended,
				Action:     domain.ActionUpdated,
				OccurredAt: time.Now().UTC(),
			}})
			if user != organizer && rand.Intn(2) == 0 {
				out = append(out, message{user, kafka.TypeReview, domain.ReviewEvent{
					FromUserID: user,
					ToUserID:   organizer,
					EventID:    eventID,
					Rating:     rand.Intn(5) + 1,
				}})
			}
		}
		out = append(out, message{organizer, kafka.TypeEvent, domain.EventLifecycleEvent{
			EventID:     eventID,
			OrganizerID: organizer,
			Title:       fmt.Sprintf("Pickup game #%d", eventID),
			Status:      domain.EventCompleted,
			Action:      domain.ActionUpdated,
		}})
		delete(s.open, eventID)
		delete(s.joined, eventID)
		return out
	default:
		return []message{s.createEvent()}
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "sports-domain-events", "Kafka topic")
	totalUsers := flag.Int64("users", 200, "Number of user profiles to create")
	ratePerSecond := flag.Int("rate", 20, "Simulated domain events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	profilesOnly := flag.Bool("profiles-only", false, "Only create user profiles, no activity")
	flag.Parse()

	if *totalUsers <= 0 || *ratePerSecond <= 0 {
		log.Fatal("users and rate must be positive")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("  Sports domain event producer")
	fmt.Printf("  Brokers:      %s\n", *brokers)
	fmt.Printf("  Topic:        %s\n", *topic)
	fmt.Printf("  Users:        %d\n", *totalUsers)
	fmt.Printf("  Events/sec:   %d\n", *ratePerSecond)
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	// keep every user's events on one partition so they stay ordered
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	send := func(m message) {
		data, err := kafka.Encode(m.typ, m.payload)
		if err != nil {
			log.Printf("Failed to encode message: %v", err)
			return
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(strconv.FormatInt(m.key, 10)),
			Value: sarama.ByteEncoder(data),
		}
	}

	fmt.Printf("Creating %d profiles...\n", *totalUsers)
	for id := int64(1); id <= *totalUsers; id++ {
		send(message{id, kafka.TypeProfile, domain.ProfileEvent{
			UserID:   id,
			Username: username(id),
			Action:   domain.ActionCreated,
		}})
	}

	if *profilesOnly {
		shutdown("Profiles-only mode: exiting")
		return
	}

	sim := &simulator{
		users:  *totalUsers,
		open:   make(map[int64]int64),
		joined: make(map[int64][]int64),
	}

	ticker := time.NewTicker(time.Second / time.Duration(*ratePerSecond))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var produced int64
	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}
			for _, m := range sim.next() {
				send(m)
				produced++
			}

		case <-statsTicker.C:
			fmt.Printf("[%s] Produced: %d | Sent: %d | Errors: %d | Open events: %d\n",
				time.Now().Format("15:04:05"),
				produced,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
				len(sim.open),
			)
		}
	}
}
