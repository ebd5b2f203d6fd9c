// Package watcher reports file changes under a directory tree as debounced
// batches, so watch mode can re-search only the files that changed.
//
// fsnotify is used when available; a polling watcher takes over on systems
// where it cannot be initialized, or when polling is forced for network
// mounts.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, root)
//
//	for batch := range w.Events() {
//	    files := watcher.ChangedFiles(root, batch)
//	    // search files
//	}
package watcher
