// Package domain define os tipos, contratos e a taxonomia de erros do controle
// de acesso: cotas por janela fixa, política de toggles e suspensão de contas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Stores, repositórios e sinks de estatística são portas implementadas em infra.
package domain
