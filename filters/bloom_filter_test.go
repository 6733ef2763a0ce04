package filters

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kwertop/dgimstat"
	"github.com/kwertop/dgimstat/bitset"
)

func initMockRedis() {
	mr, _ := miniredis.Run()
	redisUri := "redis://" + mr.Addr()
	connOptions, _ := dgimstat.ParseRedisURI(redisUri)
	dgimstat.MakeRedisClient(*connOptions)
}

func TestFilterSizeError(t *testing.T) {
	bitset := bitset.NewBitSetMem(1000)
	_, err := NewBloomFilterWithBitSet(100, 4, bitset, "")
	if err == nil {
		t.Error("should error out as size doesn't match")
	}
}

func TestFilterRedisWithoutMetadataKey(t *testing.T) {
	initMockRedis()
	set, _ := bitset.NewBitSetRedis(100)
	if _, err := NewBloomFilterWithBitSet(100, 4, set, ""); err == nil {
		t.Error("should error out as metadata key is blank")
	}
}

func testFilterWithBitset(filter *BloomFilter, t *testing.T) {
	filter.InsertString("ebola")
	ok1, _ := filter.LookupString("who")
	ok2, _ := filter.LookupString("ebola")
	filter.InsertString("stopebola")
	ok3, _ := filter.LookupString("sierraleone")
	ok4, _ := filter.LookupString("stopebola")
	if ok1 {
		t.Error("who should not be in filter")
	}
	if !ok2 {
		t.Error("ebola should be in filter")
	}
	if ok3 {
		t.Error("sierraleone should not be in filter")
	}
	if !ok4 {
		t.Error("stopebola should be in filter")
	}
}

func TestFilterWithBitSetMem(t *testing.T) {
	filter, _ := NewMemBloomFilter(1000, 4)
	testFilterWithBitset(filter, t)
}

func TestFilterWithBitSetRedis(t *testing.T) {
	initMockRedis()
	filter, err := NewRedisBloomFilter(1000, 4)
	if err != nil {
		t.Fatalf("redis filter should be created, got %v", err)
	}
	testFilterWithBitset(filter, t)
}

func TestFilterZeroSizes(t *testing.T) {
	filter, _ := NewMemBloomFilter(0, 0)
	if filter.GetCap() != 1 {
		t.Errorf("size: %v should be 1", filter.GetCap())
	}
	if filter.GetNumHashes() != 1 {
		t.Errorf("numHash: %v should be 1", filter.GetNumHashes())
	}
}

func testPositiveRate(nItems uint, errorRate float64, t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(nItems, errorRate)
	for i := uint(0); i < nItems; i++ {
		filter.InsertString("tag" + strconv.Itoa(int(i)))
	}
	for i := uint(0); i < nItems; i++ {
		if ok, _ := filter.LookupString("tag" + strconv.Itoa(int(i))); !ok {
			t.Fatalf("tag%d should be in filter", i)
		}
	}
	falsePositives := 0
	for i := uint(0); i < nItems; i++ {
		if ok, _ := filter.LookupString("other" + strconv.Itoa(int(i))); ok {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / float64(nItems); rate > 3*errorRate {
		t.Errorf("false positive rate %v is way above %v", rate, errorRate)
	}
	if rate := filter.BloomPositiveRate(); rate > 2*errorRate {
		t.Errorf("expected positive rate %v should be close to %v", rate, errorRate)
	}
}

func TestPositiveRate1000_01(t *testing.T) {
	testPositiveRate(1000, 0.01, t)
}

func TestPositiveRate10000_001(t *testing.T) {
	testPositiveRate(10000, 0.001, t)
}

func TestNotEqualsSize(t *testing.T) {
	aFilter, _ := NewMemBloomFilter(1000, 4)
	bFilter, _ := NewMemBloomFilter(100, 4)
	if ok, _ := aFilter.Equals(bFilter); ok {
		t.Error("filters of different sizes shouldn't be equal")
	}
}

func TestEquals(t *testing.T) {
	aFilter, _ := NewMemBloomFilter(1000, 4)
	bFilter, _ := NewMemBloomFilter(1000, 4)
	aFilter.InsertString("ebola")
	bFilter.InsertString("ebola")
	if ok, _ := aFilter.Equals(bFilter); !ok {
		t.Error("aFilter and bFilter should be equal")
	}
	bFilter.InsertString("who")
	if ok, _ := aFilter.Equals(bFilter); ok {
		t.Error("aFilter and bFilter shouldn't be equal")
	}
}

func TestExport(t *testing.T) {
	filter, _ := NewMemBloomFilter(8, 1)
	data, err := filter.Export()
	if err != nil {
		t.Fatalf("export should succeed, got %v", err)
	}
	expected := `{"m":8,"k":1,"b":"AAAAAAAAAAgAAAAAAAAAAA=="}`
	if string(data) != expected {
		t.Errorf("exported data should be %s, found %s", expected, string(data))
	}
}

func TestExportRedisUnsupported(t *testing.T) {
	initMockRedis()
	filter, _ := NewRedisBloomFilter(64, 2)
	if _, err := filter.Export(); err == nil {
		t.Error("export of a redis filter should fail")
	}
}

func TestBloomRedisFromKey(t *testing.T) {
	initMockRedis()
	filter, _ := NewRedisBloomFilter(1000, 4)
	filter.InsertString("ebola")
	attached, err := NewRedisBloomFilterFromKey(filter.GetMetadataKey())
	if err != nil {
		t.Fatalf("filter should be attached, got %v", err)
	}
	if attached.GetNumHashes() != 4 || attached.GetCap() != 1000 {
		t.Errorf("attached filter should have size 1000 and 4 hashes, found %d and %d", attached.GetCap(), attached.GetNumHashes())
	}
	if ok, _ := attached.LookupString("ebola"); !ok {
		t.Error("ebola should be in the attached filter")
	}
	if _, err := NewRedisBloomFilterFromKey("missing"); err == nil {
		t.Error("attaching to a missing key should fail")
	}
}
