package dwarfx86

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type BatchResult struct {
	Path      string
	Functions []Function

	// Either a *LoadError or an *ExtractionError.  In best effort mode, Err is
	// only set on load failure.
	Err error

	// Only populated in best effort mode.
	Skipped []*ExtractionError
}

// ExtractAll loads and extracts each executable on its own worker, running
// at most numWorkers at a time (GOMAXPROCS when numWorkers <= 0).  Per
// executable failures are recorded in the corresponding result and do not
// affect other executables.  Results are in input order.
//
// Once ctx is cancelled, no further executables are scheduled (their results
// carry ctx's error) and ctx's error is returned along with the results.
func ExtractAll(
	ctx context.Context,
	paths []string,
	numWorkers int,
) (
	[]BatchResult,
	error,
) {
	return runBatch(ctx, paths, numWorkers, extractOne)
}

// ExtractAllBestEffort is similar to ExtractAll, but extracts each executable
// with GetFunctionsBestEffort.
func ExtractAllBestEffort(
	ctx context.Context,
	paths []string,
	numWorkers int,
) (
	[]BatchResult,
	error,
) {
	return runBatch(ctx, paths, numWorkers, extractOneBestEffort)
}

func runBatch(
	ctx context.Context,
	paths []string,
	numWorkers int,
	extract func(string) BatchResult,
) (
	[]BatchResult,
	error,
) {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	results := make([]BatchResult, len(paths))

	group := &errgroup.Group{}
	group.SetLimit(numWorkers)

	for idx, path := range paths {
		results[idx].Path = path

		if ctx.Err() != nil {
			results[idx].Err = ctx.Err()
			continue
		}

		group.Go(func() error {
			if ctx.Err() != nil {
				results[idx].Err = ctx.Err()
				return nil
			}

			results[idx] = extract(path)
			return nil
		})
	}

	// Workers never return errors.  Failures are recorded per result.
	_ = group.Wait()

	return results, ctx.Err()
}

func extractOne(path string) BatchResult {
	result := BatchResult{
		Path: path,
	}

	exec, err := LoadExecutable(path)
	if err != nil {
		result.Err = err
		return result
	}

	result.Functions, result.Err = exec.GetFunctions()
	return result
}

func extractOneBestEffort(path string) BatchResult {
	result := BatchResult{
		Path: path,
	}

	exec, err := LoadExecutable(path)
	if err != nil {
		result.Err = err
		return result
	}

	result.Functions, result.Skipped = exec.GetFunctionsBestEffort()
	return result
}
