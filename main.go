package main

import (
	"os"

	"diskhash/buffer"
	"diskhash/common"
	"diskhash/disk"
	"diskhash/hash"
)

// main runs a small end-to-end demonstration: a buffer pool backed by a
// disk file, and an extendible hash table built on top of it. It exists
// to exercise the stack the way a smoke test would, not as a library
// entrypoint.
func main() {
	const dbFile = "diskhash.db"

	dm, isNew, err := disk.NewDiskManager(dbFile)
	common.PanicIfErr(err)
	defer dm.Close()

	if isNew {
		common.Log.Infof("created new database file %s", dbFile)
	} else {
		common.Log.Infof("reopened existing database file %s", dbFile)
	}

	scheduler := disk.NewScheduler(dm)
	defer scheduler.Close()

	bpm := buffer.NewPoolManager(32, scheduler, 2)

	table, ok := hash.NewTable[int32, int32](
		bpm, hash.Int32Codec{}, hash.Int32Comparator, identityHash,
		9, 9, 4,
	)
	if !ok {
		common.Log.Fatal("failed to allocate header page for hash table")
	}

	common.Log.Info("inserting keys 0..31")
	for i := int32(0); i < 32; i++ {
		if !table.Insert(i, i*i) {
			common.Log.Errorf("insert failed for key %d", i)
		}
	}

	for _, k := range []int32{0, 1, 17, 31} {
		v, found := table.Get(k)
		if !found {
			common.Log.Errorf("lookup miss for key %d", k)
			continue
		}
		common.Log.Infof("get(%d) = %d", k, v)
	}

	common.Log.Info("removing even keys")
	for i := int32(0); i < 32; i += 2 {
		if !table.Remove(i) {
			common.Log.Errorf("remove failed for key %d", i)
		}
	}

	for _, k := range []int32{0, 1, 2, 31} {
		_, found := table.Get(k)
		common.Log.Infof("get(%d) present=%v", k, found)
	}

	bpm.FlushAllPages()

	if len(os.Args) > 1 && os.Args[1] == "-clean" {
		os.Remove(dbFile)
	}
}

func identityHash(key int32) uint32 {
	return uint32(key)
}
