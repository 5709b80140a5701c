// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command mpichanbench drives the twelve-variant channel family
// through an increasing-message-size throughput sweep, the way the
// original MPI throughput harness does, but over an in-process
// simulated communicator (internal/mp) instead of an mpirun-launched
// job: every producer and consumer rank runs as its own goroutine.
//
// Usage:
//
//	mpichanbench -t P2P -c 4 -p 2 -r 1 -n 1024 -i 5 -m mpichan-sim -f out.csv
package main

import (
	"encoding/binary"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"code.hybscloud.com/mpichan"
	"code.hybscloud.com/mpichan/internal/mp"
)

func main() {
	var (
		typeFlag    = flag.String("t", "", "channel type: P2P or RMA")
		capacity    = flag.Int("c", 0, "channel capacity: 0 for synchronous, >=1 for buffered")
		producers   = flag.Int("p", 0, "number of producers")
		receivers   = flag.Int("r", 0, "number of receivers")
		msgNum      = flag.Int("n", 0, "maximum number of messages (power-of-two upper bound)")
		iterations  = flag.Int("i", 0, "number of repetitions per run")
		fileName    = flag.String("f", "", "CSV output file path")
		impl        = flag.String("m", "mpichan-sim", "implementation name to record in the CSV")
		printOutput = flag.Bool("d", false, "print sent/received values")
		peekFirst   = flag.Bool("e", false, "peek before every send/receive")
		validate    = flag.Bool("v", false, "validate order of arrival")
		help        = flag.Bool("h", false, "print help and exit")
	)
	flag.Parse()

	required := 0
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t", "c", "p", "r", "n", "i":
			required++
		}
	})
	if *help || required < 6 {
		printHelp()
		return
	}

	substrate := mpichan.P2P
	typeStr := "P2P"
	if *typeFlag == "RMA" {
		substrate = mpichan.RMA
		typeStr = "RMA"
	}

	cardStr := "MPMC"
	switch {
	case *producers == 1 && *receivers == 1:
		cardStr = "SPSC"
	case *producers > 1 && *receivers == 1:
		cardStr = "MPSC"
	}

	var csvWriter *csv.Writer
	var csvFile *os.File
	if *fileName != "" {
		f, err := os.OpenFile(*fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mpichanbench: %v\n", err)
			os.Exit(1)
		}
		csvFile = f
		defer csvFile.Close()
		csvWriter = csv.NewWriter(csvFile)
		defer csvWriter.Flush()
	}

	mp.Init()
	defer mp.Finalize()

	procs := *producers + *receivers
	world := mp.NewWorld(procs)
	hostname, _ := os.Hostname()

	for count := *producers * *receivers; count <= *msgNum; count *= 2 {
		if count == 0 {
			count = 1
		}
		var sumTime = make([]float64, procs)
		var numB, numBi = make([]int64, procs), make([]int64, procs)

		for run := 0; run < *iterations; run++ {
			elapsed, bytesTotal, bytesIndiv := runOnce(world, substrate, *capacity, *producers, *receivers, count, *printOutput, *peekFirst, *validate)
			for r := 0; r < procs; r++ {
				sumTime[r] += elapsed[r]
				numB[r] = bytesTotal[r]
				numBi[r] = bytesIndiv[r]
			}
		}

		for r := 0; r < procs; r++ {
			avgTime := sumTime[r] / float64(*iterations)
			numGB := float64(numB[r]) / float64(1<<30)
			bandwidth := numGB / avgTime
			role := "producer"
			if r < *receivers {
				role = "consumer"
			}
			record := []string{
				typeStr, cardStr, fmt.Sprint(procs), fmt.Sprint(*producers), fmt.Sprint(*receivers),
				fmt.Sprint(*iterations), fmt.Sprint(*capacity), role, fmt.Sprint(r),
				fmt.Sprint(numB[r]), fmt.Sprint(numBi[r]),
				fmt.Sprintf("%.9f", avgTime), fmt.Sprintf("%.9f", bandwidth),
				*impl, hostname,
			}
			if csvWriter != nil {
				csvWriter.Write(record)
			}
			fmt.Printf("type=%s card=%s role=%s rank=%d bytes=%d avg_time_s=%.9f bandwidth_GBps=%.9f\n",
				typeStr, cardStr, role, r, numB[r], avgTime, bandwidth)
		}
	}
}

// runOnce allocates one channel collectively across procs goroutines,
// has every producer send count ints and every receiver receive its
// share, and returns per-rank elapsed time and byte counts.
func runOnce(world *mp.World, substrate mpichan.Substrate, capacity, producers, receivers, count int, printOutput, peekFirst, validate bool) (elapsed []float64, numB, numBi []int64) {
	procs := world.Size()
	elapsed = make([]float64, procs)
	numB = make([]int64, procs)
	numBi = make([]int64, procs)

	var wg sync.WaitGroup
	wg.Add(procs)
	for rank := 0; rank < procs; rank++ {
		go func(rank int) {
			defer wg.Done()
			comm := world.Rank(rank)
			isReceiver := rank < receivers

			h, err := mpichan.Alloc(4, capacity, substrate, comm, isReceiver)
			if err != nil {
				fmt.Fprintf(os.Stderr, "mpichanbench: alloc failed on rank %d: %v\n", rank, err)
				return
			}
			defer h.Free()

			myLen := count
			if isReceiver {
				total := count * producers
				myLen = total / receivers
				if rank < total%receivers {
					myLen++
				}
			}

			start := time.Now()
			buf := make([]byte, 4)
			if !isReceiver {
				for i := 0; i < myLen; i++ {
					if peekFirst {
						for {
							n, _ := h.Peek()
							if n > 0 {
								break
							}
						}
					}
					binary.LittleEndian.PutUint32(buf, uint32(i))
					h.Send(buf)
					if printOutput {
						fmt.Printf("rank %d sent %d\n", rank, i)
					}
				}
			} else {
				for i := 0; i < myLen; i++ {
					if peekFirst {
						for {
							n, _ := h.Peek()
							if n > 0 {
								break
							}
						}
					}
					h.Receive(buf)
					v := binary.LittleEndian.Uint32(buf)
					if printOutput {
						fmt.Printf("rank %d received %d\n", rank, v)
					}
					if validate && int(v) != i {
						fmt.Fprintf(os.Stderr, "mpichanbench: rank %d out-of-order value %d at index %d\n", rank, v, i)
					}
				}
			}
			elapsed[rank] = time.Since(start).Seconds()
			numB[rank] = int64(4 * count)
			numBi[rank] = int64(4 * myLen)
		}(rank)
	}
	wg.Wait()
	return elapsed, numB, numBi
}

func printHelp() {
	fmt.Println("Usage: mpichanbench [REQUIRED FLAGS] [OPTIONAL FLAGS]")
	fmt.Println()
	fmt.Println("REQUIRED")
	fmt.Println("  -t\tChannel type: P2P or RMA")
	fmt.Println("  -c\tChannel capacity: 0 for synchronous, 1 or greater for buffered")
	fmt.Println("  -p\tNumber of producers; must be at least 1")
	fmt.Println("  -r\tNumber of receivers; must be at least 1")
	fmt.Println("  -n\tMaximum number of messages")
	fmt.Println("  -i\tNumber of repetitions of each run")
	fmt.Println()
	fmt.Println("OPTIONAL")
	fmt.Println("  -f\tCSV output file path")
	fmt.Println("  -m\tImplementation name to record in the CSV")
	fmt.Println("  -d\tPrint sent/received values")
	fmt.Println("  -e\tPeek before every send/receive")
	fmt.Println("  -v\tValidate order of arrival of messages")
	fmt.Println("  -h\tPrint this help and exit")
	fmt.Println()
	fmt.Println("Every run allocates a channel of the given type and capacity, sends/receives an")
	fmt.Println("increasing number of integers, and deallocates it. The producer/receiver counts")
	fmt.Println("determine whether the channel is SPSC, MPSC, or MPMC. The message count doubles")
	fmt.Println("each run, starting at producers*receivers, up to -n; each data point is averaged")
	fmt.Println("over -i repetitions.")
}
