// Command driver is a small demonstration program: it runs a plain
// commit, a read that fails while another transaction holds the orec
// between the two phases of its commit, and a pair of
// concurrent transactions that genuinely race on the same address.
package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"orecstm/pkg/txn"
)

func main() {
	ctx := txn.NewContext()
	var disk txn.Word = 10

	// A plain, uncontended commit.
	tx := txn.NewTransaction(ctx)
	if err := tx.Write(&disk, 20); err != nil {
		log.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		log.Fatal(err)
	}
	log.Printf("after plain commit: disk=%d", disk)

	// Acquire-time contention: t1 finishes phase one of its commit and
	// holds disk's orec but has not yet published. A second transaction
	// that touches disk in that window must see it as owned and fail
	// with ErrConsistency, rather than reading a half-committed value.
	t1 := txn.NewTransaction(ctx)
	defer t1.Abort()
	if err := t1.Write(&disk, 50); err != nil {
		log.Fatal(err)
	}
	if !t1.AcquireAll() {
		log.Fatal("t1 unexpectedly lost acquisition on an uncontended address")
	}

	t2 := txn.NewTransaction(ctx)
	defer t2.Abort()
	if _, err := t2.Read(&disk); err != nil {
		if !errors.Is(err, txn.ErrConsistency) {
			log.Fatal(err)
		}
		log.Printf("t2 observed disk's orec still held by t1: %v", err)
	} else {
		log.Fatal("t2 unexpectedly read through an orec t1 holds")
	}

	t1.MakeAllChanges()
	log.Printf("after acquire-time contention demo: disk=%d", disk)

	// Two goroutines racing to write the same address; exactly one
	// commit must succeed.
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		tx := txn.NewTransaction(ctx)
		defer tx.Abort()

		if err := tx.Write(&disk, 30); err != nil {
			log.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond) // widen the race window
		if err := tx.Commit(); err != nil {
			if !errors.Is(err, txn.ErrConsistency) {
				log.Fatal(err)
			}
			log.Printf("writer A lost the race: %v", err)
			return
		}
		log.Println("writer A committed")
	}()

	go func() {
		defer wg.Done()
		tx := txn.NewTransaction(ctx)
		defer tx.Abort()

		if err := tx.Write(&disk, 40); err != nil {
			log.Fatal(err)
		}
		if err := tx.Commit(); err != nil {
			if !errors.Is(err, txn.ErrConsistency) {
				log.Fatal(err)
			}
			log.Printf("writer B lost the race: %v", err)
			return
		}
		log.Println("writer B committed")
	}()

	wg.Wait()
	log.Printf("final value: disk=%d", disk)
}
