package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/fs/udf"
)

func main() {
	iso := flag.String("iso", "", "path to DVD image or device")
	flag.Parse()
	if *iso == "" {
		log.Fatal("-iso required")
	}

	fp, err := blockio.OpenFile(*iso)
	if err != nil {
		log.Fatalf("OpenFile: %v", err)
	}
	defer fp.Close()

	sr := blockio.NewSectorReader(fp)
	r, err := udf.NewReader(sr, sr.Sectors())
	if err != nil {
		log.Fatalf("NewReader: %v", err)
	}

	fmt.Printf("label=%q blockSize=%d sectors=%d\n", r.GetVolumeLabel(), r.BlockSize(), sr.Sectors())
	starts := r.PartitionStarts()
	nums := make([]int, 0, len(starts))
	for n := range starts {
		nums = append(nums, int(n))
	}
	sort.Ints(nums)
	for _, n := range nums {
		fmt.Printf("partition %d start=%d\n", n, starts[uint16(n)])
	}
	fsd := r.FileSetLocation()
	fmt.Printf("fileSet: extentLen=%d lbn=%d pref=%d\n", fsd.ExtentLength, fsd.ExtentLocation.LogicalBlockNumber, fsd.ExtentLocation.PartitionReferenceNumber)
	root := r.RootICB()
	fmt.Printf("rootICB: extentLen=%d lbn=%d pref=%d\n", root.ExtentLength, root.ExtentLocation.LogicalBlockNumber, root.ExtentLocation.PartitionReferenceNumber)

	dir, err := r.ReadDirectory("/")
	if err != nil {
		fmt.Printf("ReadDirectory(/) err: %v\n", err)
		return
	}

	dirs, err := dir.GetDirectories()
	if err != nil {
		fmt.Printf("GetDirectories err: %v\n", err)
		return
	}
	fmt.Printf("root dirs (%d):\n", len(dirs))
	for _, d := range dirs {
		fmt.Printf("- %q\n", d.Name)
	}

	vts, err := r.ReadDirectory("/VIDEO_TS")
	if err != nil {
		fmt.Printf("ReadDirectory(/VIDEO_TS) err: %v\n", err)
		return
	}
	files, err := vts.GetFiles()
	if err != nil {
		fmt.Printf("GetFiles(/VIDEO_TS) err: %v\n", err)
		return
	}
	fmt.Printf("VIDEO_TS files (%d):\n", len(files))
	for _, f := range files {
		fmt.Printf("- %q size=%d blocks=%d\n", f.Name, f.Size(), f.Blocks())
		exts, err := f.Extents()
		if err != nil {
			fmt.Printf("    extents err: %v\n", err)
			continue
		}
		for _, e := range exts {
			fmt.Printf("    offset=%d len=%d sector=%d\n", e.FileOffset, e.Length, e.StartSector)
		}
		if strings.HasSuffix(strings.ToUpper(f.Name), ".IFO") {
			printHead(f)
		}
	}
}

func printHead(f *udf.File) {
	rc, err := f.Open()
	if err != nil {
		fmt.Printf("    open err: %v\n", err)
		return
	}
	defer rc.Close()
	buf := make([]byte, 12)
	n, err := rc.Read(buf)
	if err != nil && n == 0 {
		fmt.Printf("    read err: %v\n", err)
		return
	}
	fmt.Printf("    head=%q\n", buf[:n])
}
