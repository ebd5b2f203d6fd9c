package search

// Partition splits files items across threads workers and returns the number
// of files each worker receives. Workers take contiguous runs of
// ceil(files/threads) files; the last partitions may be short or empty.
// threads must be positive.
func Partition(files, threads int) []int {
	sizes := make([]int, threads)
	for k := 0; k < files; k++ {
		sizes[PartitionID(k, files, threads)]++
	}
	return sizes
}

// PartitionID returns the worker that owns file index k.
func PartitionID(k, files, threads int) int {
	chunk := (files + threads - 1) / threads
	if chunk == 0 {
		return 0
	}
	id := k / chunk
	if id >= threads {
		id = threads - 1
	}
	return id
}

// partitionTasks assigns tasks to threads workers in order.
func partitionTasks(tasks []FileTask, threads int) []*workerContext {
	workers := make([]*workerContext, threads)
	for i := range workers {
		workers[i] = &workerContext{id: i}
	}
	for k, task := range tasks {
		id := PartitionID(k, len(tasks), threads)
		workers[id].files = append(workers[id].files, task)
	}
	return workers
}
