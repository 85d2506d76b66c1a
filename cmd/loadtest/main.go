package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   []byte
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type orderView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  []struct {
		ID uint `json:"id"`
	} `json:"items"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	slug := flag.String("product", "", "product slug")
	adminToken := flag.String("admin-token", os.Getenv("ADMIN_TOKEN"), "admin bearer token (storectl token --admin)")

	// 超卖测试参数：N 个订单并发付款，每个回调重复 dup 次
	nOrders := flag.Int("orders", 50, "orders to create")
	dup := flag.Int("dup", 2, "payment callbacks per order")
	concurrency := flag.Int("c", 20, "max concurrency")
	flag.Parse()

	if *slug == "" || *adminToken == "" {
		fmt.Println("usage: loadtest -product <slug> -admin-token <token>")
		os.Exit(2)
	}
	client := &http.Client{Timeout: 10 * time.Second}

	stockBefore, err := getStock(client, *baseURL, *slug)
	if err != nil {
		panic(fmt.Sprintf("stock check failed: %v", err))
	}
	fmt.Printf("product=%s stock=%d orders=%d dup=%d concurrency=%d\n", *slug, stockBefore, *nOrders, *dup, *concurrency)

	// 1) 建单
	ids := make([]string, 0, *nOrders)
	for i := 0; i < *nOrders; i++ {
		res := doJSON(client, http.MethodPost, *baseURL+"/api/orders", "", map[string]string{
			"product_slug": *slug,
			"email":        fmt.Sprintf("loadtest+%d@example.com", i),
		})
		var o orderView
		if err := decode(res, &o); err != nil {
			panic(fmt.Sprintf("create order %d: %v", i, err))
		}
		ids = append(ids, o.ID)
	}

	// 2) 并发付款回调（含重复回调）
	results := runPayments(client, *baseURL, *adminToken, ids, *dup, *concurrency)
	printSummary("payment", results)

	// 3) 校验：没有条目被分给两个订单，已绑定数量不超过初始库存
	seen := map[uint]string{}
	bound, duplicated, multi := 0, 0, 0
	for _, id := range ids {
		var o orderView
		if err := decode(doJSON(client, http.MethodGet, *baseURL+"/api/orders/"+id, "", nil), &o); err != nil {
			fmt.Println("fetch order err:", err)
			continue
		}
		if len(o.Items) > 1 {
			multi++
		}
		for _, it := range o.Items {
			bound++
			if other, ok := seen[it.ID]; ok && other != id {
				duplicated++
			}
			seen[it.ID] = id
		}
	}
	stockAfter, _ := getStock(client, *baseURL, *slug)

	fmt.Printf("bound=%d stock_before=%d stock_after=%d\n", bound, stockBefore, stockAfter)
	fmt.Printf("items shared by two orders: %d, orders with more than one item: %d\n", duplicated, multi)
	if duplicated > 0 || multi > 0 || int64(bound) > stockBefore {
		fmt.Println("FAIL: over-allocation detected")
		os.Exit(1)
	}
	fmt.Println("OK")
}

func runPayments(client *http.Client, baseURL, token string, ids []string, dup, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, len(ids)*dup)

	for i := range results {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = doJSON(client, http.MethodPost, baseURL+"/api/payment/mock", token, map[string]string{
				"order_id": ids[idx%len(ids)],
				"status":   "PAID",
			})
		}(i)
	}

	wg.Wait()
	return results
}

func doJSON(client *http.Client, method, url, token string, body any) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: b}
}

func decode(res Result, out any) error {
	if res.Err != nil {
		return res.Err
	}
	if res.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", res.Status, string(res.Body))
	}
	var env envelope
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 403, 404, 409, 429, 500, 503} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 查询商品当前可售库存。
func getStock(client *http.Client, baseURL, slug string) (int64, error) {
	var p struct {
		Stock int64 `json:"stock"`
	}
	if err := decode(doJSON(client, http.MethodGet, baseURL+"/api/products/"+slug, "", nil), &p); err != nil {
		return 0, err
	}
	return p.Stock, nil
}
